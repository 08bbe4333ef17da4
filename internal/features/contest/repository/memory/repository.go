package memory

import (
	"context"
	"sync"
	"time"

	"contest-engine-backend/internal/features/contest/models"
	"contest-engine-backend/internal/features/contest/repository"
)

// Repository is an in-memory ContestRepository used by tests. One mutex
// guards every map, which gives the same atomicity the Redis scripts and
// conditional updates provide in production.
type Repository struct {
	mu sync.Mutex

	contests      map[string]*models.Contest
	stats         map[string]map[int64]*models.ParticipantStats
	boosts        map[string]map[int64]*models.Boost
	distributions map[string]*models.PrizeDistribution
	distIndex     map[string]string
	secondChance  map[string]map[int64]models.SecondChanceEntry
	locks         map[string]time.Time
}

func NewContestRepository() *Repository {
	return &Repository{
		contests:      make(map[string]*models.Contest),
		stats:         make(map[string]map[int64]*models.ParticipantStats),
		boosts:        make(map[string]map[int64]*models.Boost),
		distributions: make(map[string]*models.PrizeDistribution),
		distIndex:     make(map[string]string),
		secondChance:  make(map[string]map[int64]models.SecondChanceEntry),
		locks:         make(map[string]time.Time),
	}
}

func cloneContest(c *models.Contest) *models.Contest {
	cp := *c
	cp.Prizes = append([]models.Prize(nil), c.Prizes...)
	cp.Winners = append([]models.Winner(nil), c.Winners...)
	return &cp
}

func (r *Repository) Create(_ context.Context, contest *models.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contests[contest.ID] = cloneContest(contest)
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*models.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contest, ok := r.contests[id]
	if !ok {
		return nil, repository.ErrContestNotFound
	}
	return cloneContest(contest), nil
}

func (r *Repository) Update(_ context.Context, contest *models.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contests[contest.ID]; !ok {
		return repository.ErrContestNotFound
	}
	contest.UpdatedAt = time.Now()
	stored := cloneContest(contest)
	// Aggregates are owned by ApplyActivity; keep the stored values.
	if prev, ok := r.contests[contest.ID]; ok {
		stored.TotalReactions = prev.TotalReactions
		stored.TotalComments = prev.TotalComments
		stored.Participants = prev.Participants
	}
	r.contests[contest.ID] = stored
	return nil
}

func (r *Repository) UpdateStatusIf(_ context.Context, id string, expected, next models.ContestStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contest, ok := r.contests[id]
	if !ok {
		return false, repository.ErrContestNotFound
	}
	if contest.Status != expected {
		return false, nil
	}
	contest.Status = next
	contest.UpdatedAt = time.Now()
	return true, nil
}

func (r *Repository) GetExpiredActive(_ context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for id, contest := range r.contests {
		if contest.Status == models.ContestStatusActive && contest.HasEnded(now) {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (r *Repository) GetStuckCompleting(_ context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stuck []string
	for id, contest := range r.contests {
		if contest.Status == models.ContestStatusCompleting && contest.HasEnded(now) {
			stuck = append(stuck, id)
		}
	}
	return stuck, nil
}

func (r *Repository) GetCompletedIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, contest := range r.contests {
		if contest.Status == models.ContestStatusCompleted {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Repository) statsFor(contestID string, telegramID int64) *models.ParticipantStats {
	byUser, ok := r.stats[contestID]
	if !ok {
		byUser = make(map[int64]*models.ParticipantStats)
		r.stats[contestID] = byUser
	}
	s, ok := byUser[telegramID]
	if !ok {
		s = &models.ParticipantStats{ContestID: contestID, TelegramID: telegramID, Multiplier: 1.0}
		byUser[telegramID] = s
	}
	return s
}

func (r *Repository) ApplyActivity(_ context.Context, contestID string, telegramID int64, delta repository.ActivityDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.stats[contestID][telegramID]
	s := r.statsFor(contestID, telegramID)
	s.Points += delta.Points
	s.Reactions += delta.Reactions
	s.Comments += delta.Comments
	s.Replies += delta.Replies
	s.LastActivity = delta.LastActivity

	if contest, ok := r.contests[contestID]; ok {
		if !existed {
			contest.Participants++
		}
		contest.TotalReactions += delta.Reactions
		contest.TotalComments += delta.Comments + delta.Replies
	}
	return nil
}

func (r *Repository) GetStats(_ context.Context, contestID string, telegramID int64) (*models.ParticipantStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stats[contestID][telegramID]; ok {
		cp := *s
		return &cp, nil
	}
	return &models.ParticipantStats{ContestID: contestID, TelegramID: telegramID, Multiplier: 1.0}, nil
}

func (r *Repository) ListStats(_ context.Context, contestID string) ([]models.ParticipantStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ParticipantStats, 0, len(r.stats[contestID]))
	for _, s := range r.stats[contestID] {
		out = append(out, *s)
	}
	return out, nil
}

func (r *Repository) ActivateBoost(_ context.Context, boost *models.Boost, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.boosts[boost.ContestID][boost.TelegramID]; ok && existing.ActiveAt(now) {
		return false, nil
	}

	byUser, ok := r.boosts[boost.ContestID]
	if !ok {
		byUser = make(map[int64]*models.Boost)
		r.boosts[boost.ContestID] = byUser
	}
	cp := *boost
	byUser[boost.TelegramID] = &cp

	s := r.statsFor(boost.ContestID, boost.TelegramID)
	s.Multiplier = boost.Multiplier
	s.BoostExpiresAt = boost.ExpiresAt
	return true, nil
}

func (r *Repository) GetBoost(_ context.Context, contestID string, telegramID int64) (*models.Boost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.boosts[contestID][telegramID]
	if !ok {
		return nil, repository.ErrBoostNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *Repository) DeactivateBoost(_ context.Context, contestID string, telegramID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.boosts[contestID][telegramID]; ok {
		b.IsActive = false
	}
	s := r.statsFor(contestID, telegramID)
	s.Multiplier = 1.0
	s.BoostExpiresAt = nil
	return nil
}

func (r *Repository) GetDistribution(_ context.Context, contestID string, telegramID int64, position int) (*models.PrizeDistribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.distIndex[models.DistributionKey(contestID, telegramID, position)]
	if !ok {
		return nil, repository.ErrDistributionNotFound
	}
	cp := *r.distributions[id]
	return &cp, nil
}

func (r *Repository) GetDistributionByID(_ context.Context, id string) (*models.PrizeDistribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.distributions[id]
	if !ok {
		return nil, repository.ErrDistributionNotFound
	}
	cp := *record
	return &cp, nil
}

func (r *Repository) SaveDistribution(_ context.Context, record *models.PrizeDistribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record.UpdatedAt = time.Now()
	cp := *record
	r.distributions[record.ID] = &cp
	r.distIndex[record.Key()] = record.ID
	return nil
}

func (r *Repository) ListDistributions(_ context.Context, contestID string) ([]*models.PrizeDistribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.PrizeDistribution
	for _, record := range r.distributions {
		if record.ContestID == contestID {
			cp := *record
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *Repository) AddSecondChanceEntry(_ context.Context, entry *models.SecondChanceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byUser, ok := r.secondChance[entry.ContestID]
	if !ok {
		byUser = make(map[int64]models.SecondChanceEntry)
		r.secondChance[entry.ContestID] = byUser
	}
	if _, exists := byUser[entry.TelegramID]; exists {
		return repository.ErrDuplicateEntry
	}
	byUser[entry.TelegramID] = *entry
	return nil
}

func (r *Repository) ListSecondChanceEntries(_ context.Context, contestID string) ([]models.SecondChanceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.SecondChanceEntry, 0, len(r.secondChance[contestID]))
	for _, entry := range r.secondChance[contestID] {
		out = append(out, entry)
	}
	return out, nil
}

func (r *Repository) AcquireLock(_ context.Context, key string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if until, ok := r.locks[key]; ok && time.Now().Before(until) {
		return repository.ErrAlreadyLocked
	}
	r.locks[key] = time.Now().Add(ttl)
	return nil
}

func (r *Repository) ReleaseLock(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.locks, key)
	return nil
}

var _ repository.ContestRepository = (*Repository)(nil)
