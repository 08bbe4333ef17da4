package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "contest-engine-backend/internal/common/errors"
	"contest-engine-backend/internal/common/logger"
	"contest-engine-backend/internal/features/contest/models"
	"contest-engine-backend/internal/features/contest/repository"
)

// SchedulerService is the singleton background loop that moves contests past
// their end time through completion, draws the delayed second-chance winners
// and re-drives interrupted completions and distributions. Every pass is
// written to be re-entrant: conditional status moves and per-record
// idempotency keys make a crashed or doubled run converge instead of
// double-paying.
type SchedulerService struct {
	repo    repository.ContestRepository
	ranking *RankingService
	dist    *DistributionService

	tickInterval     time.Duration
	recoveryInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
	log zerolog.Logger
}

func NewSchedulerService(
	repo repository.ContestRepository,
	ranking *RankingService,
	dist *DistributionService,
	tickInterval, recoveryInterval time.Duration,
) *SchedulerService {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	if recoveryInterval <= 0 {
		recoveryInterval = 10 * tickInterval
	}
	return &SchedulerService{
		repo:             repo,
		ranking:          ranking,
		dist:             dist,
		tickInterval:     tickInterval,
		recoveryInterval: recoveryInterval,
		now:              time.Now,
		log:              logger.Component("scheduler"),
	}
}

// Start launches the background loops. Calling Start on a running scheduler
// is a no-op.
func (s *SchedulerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(2)
	go s.loop(ctx, s.tickInterval, s.RunTick)
	go s.loop(ctx, s.recoveryInterval, s.RunRecovery)

	s.log.Info().
		Dur("tick_interval", s.tickInterval).
		Dur("recovery_interval", s.recoveryInterval).
		Msg("scheduler started")
}

// Stop cancels the loops and waits for in-flight passes to finish.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *SchedulerService) loop(ctx context.Context, interval time.Duration, pass func(context.Context) error) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pass(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("scheduler pass failed")
			}
		}
	}
}

// RunTick is one synchronous scheduler pass: complete every expired active
// contest, then run due second-chance draws. Exposed so the admin surface
// and tests can drive a pass directly.
func (s *SchedulerService) RunTick(ctx context.Context) error {
	expired, err := s.repo.GetExpiredActive(ctx, s.now())
	if err != nil {
		return apperrors.NewDatabaseError("list expired contests", err)
	}
	for _, id := range expired {
		if err := s.completeContest(ctx, id); err != nil {
			s.log.Error().Err(err).Str("contest_id", id).Msg("contest completion failed")
		}
	}

	completed, err := s.repo.GetCompletedIDs(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("list completed contests", err)
	}
	for _, id := range completed {
		if err := s.runSecondChance(ctx, id); err != nil {
			s.log.Error().Err(err).Str("contest_id", id).Msg("second chance draw failed")
		}
	}
	return nil
}

// completeContest claims one expired contest and resolves it: freeze the
// leaderboard, persist the winner list and hand the batch to distribution.
// The active-to-completing conditional move is the claim; a concurrent tick
// that loses the move walks away without touching the contest.
func (s *SchedulerService) completeContest(ctx context.Context, id string) error {
	if err := s.repo.AcquireLock(ctx, "complete:"+id, LockTimeout); err != nil {
		if err == repository.ErrAlreadyLocked {
			return nil
		}
		return apperrors.NewDatabaseError("acquire completion lock", err)
	}
	defer func() {
		if err := s.repo.ReleaseLock(ctx, "complete:"+id); err != nil {
			s.log.Warn().Err(err).Str("contest_id", id).Msg("failed to release completion lock")
		}
	}()

	claimed, err := s.repo.UpdateStatusIf(ctx, id, models.ContestStatusActive, models.ContestStatusCompleting)
	if err != nil {
		return apperrors.NewDatabaseError("claim contest", err)
	}
	if !claimed {
		return nil
	}

	contest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperrors.NewDatabaseError("get contest", err)
	}
	return s.finalizeCompletion(ctx, contest)
}

// finalizeCompletion resolves a claimed contest: rank, persist the winner
// list, move to completed and hand the batch to distribution. Callers hold
// the completion lock and have verified the completing status.
func (s *SchedulerService) finalizeCompletion(ctx context.Context, contest *models.Contest) error {
	id := contest.ID
	top, err := s.ranking.Rank(ctx, id, contest.WinnersCount, 0)
	if err != nil {
		return err
	}

	winners := make([]models.Winner, 0, len(top))
	for i, stats := range top {
		winners = append(winners, models.Winner{
			TelegramID: stats.TelegramID,
			Points:     stats.Points,
			Position:   i + 1,
		})
	}

	now := s.now()
	contest.Status = models.ContestStatusCompleted
	contest.Winners = winners
	contest.CompletedAt = &now
	contest.UpdatedAt = now
	if err := s.repo.Update(ctx, contest); err != nil {
		return apperrors.NewDatabaseError("persist completed contest", err)
	}

	s.log.Info().
		Str("contest_id", id).
		Int("winners", len(winners)).
		Int64("participants", contest.Participants).
		Msg("contest completed")

	return s.dist.Distribute(ctx, contest, winners)
}

// resumeCompletion picks up a contest stranded in completing. The lock
// distinguishes a crashed completion from a live one: a live completer still
// holds it, and after a crash the TTL lapses and the resume takes over.
func (s *SchedulerService) resumeCompletion(ctx context.Context, id string) error {
	if err := s.repo.AcquireLock(ctx, "complete:"+id, LockTimeout); err != nil {
		if err == repository.ErrAlreadyLocked {
			return nil
		}
		return apperrors.NewDatabaseError("acquire completion lock", err)
	}
	defer func() {
		if err := s.repo.ReleaseLock(ctx, "complete:"+id); err != nil {
			s.log.Warn().Err(err).Str("contest_id", id).Msg("failed to release completion lock")
		}
	}()

	contest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperrors.NewDatabaseError("get contest", err)
	}
	if contest.Status != models.ContestStatusCompleting {
		return nil
	}

	s.log.Warn().Str("contest_id", id).Msg("resuming interrupted completion")
	return s.finalizeCompletion(ctx, contest)
}

// runSecondChance draws bonus winners among opt-ins once the delay after
// completion has elapsed. The drawn-at marker on the contest makes the draw
// happen at most once.
func (s *SchedulerService) runSecondChance(ctx context.Context, id string) error {
	contest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperrors.NewDatabaseError("get contest", err)
	}
	if contest.Status != models.ContestStatusCompleted || contest.CompletedAt == nil {
		return nil
	}
	if contest.SecondChanceDrawnAt != nil {
		return nil
	}
	if s.now().Sub(*contest.CompletedAt) < SecondChanceDelay {
		return nil
	}

	entries, err := s.repo.ListSecondChanceEntries(ctx, id)
	if err != nil {
		return apperrors.NewDatabaseError("list second chance entries", err)
	}

	eligible := make([]models.SecondChanceEntry, 0, len(entries))
	for _, entry := range entries {
		if !contest.IsWinner(entry.TelegramID) {
			eligible = append(eligible, entry)
		}
	}
	rand.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if len(eligible) > SecondChanceWinnersCap {
		eligible = eligible[:SecondChanceWinnersCap]
	}

	now := s.now()
	contest.SecondChanceDrawnAt = &now
	contest.UpdatedAt = now

	drawn := make([]models.Winner, 0, len(eligible))
	position := len(contest.Winners)
	for _, entry := range eligible {
		position++
		stats, statsErr := s.repo.GetStats(ctx, id, entry.TelegramID)
		var points int64
		if statsErr == nil {
			points = stats.Points
		}
		drawn = append(drawn, models.Winner{
			TelegramID:   entry.TelegramID,
			Points:       points,
			Position:     position,
			SecondChance: true,
		})
	}
	contest.Winners = append(contest.Winners, drawn...)

	if err := s.repo.Update(ctx, contest); err != nil {
		return apperrors.NewDatabaseError("persist second chance draw", err)
	}

	if len(drawn) == 0 {
		s.log.Info().Str("contest_id", id).Msg("second chance draw had no eligible entries")
		return nil
	}

	s.log.Info().Str("contest_id", id).Int("drawn", len(drawn)).Msg("second chance winners drawn")
	return s.dist.Distribute(ctx, contest, drawn)
}

// RunRecovery repairs the two crash windows of a scheduler pass. Contests
// stranded in completing by a crash after the claim are driven back through
// completion. Completed contests are then swept for winners whose
// distribution record never got created, as after a crash between completion
// and the first send. Records that exist, including failed and exhausted
// ones, are left to the explicit retry path.
func (s *SchedulerService) RunRecovery(ctx context.Context) error {
	stuck, err := s.repo.GetStuckCompleting(ctx, s.now())
	if err != nil {
		return apperrors.NewDatabaseError("list stuck contests", err)
	}
	for _, id := range stuck {
		if err := s.resumeCompletion(ctx, id); err != nil {
			s.log.Error().Err(err).Str("contest_id", id).Msg("completion resume failed")
		}
	}

	completed, err := s.repo.GetCompletedIDs(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("list completed contests", err)
	}

	for _, id := range completed {
		contest, err := s.repo.GetByID(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Str("contest_id", id).Msg("recovery: get contest failed")
			continue
		}

		var missing []models.Winner
		for _, winner := range contest.Winners {
			if winner.Sent {
				continue
			}
			_, err := s.repo.GetDistribution(ctx, id, winner.TelegramID, winner.Position)
			if err == repository.ErrDistributionNotFound {
				missing = append(missing, winner)
			} else if err != nil {
				s.log.Error().Err(err).Str("contest_id", id).Msg("recovery: get distribution failed")
			}
		}
		if len(missing) == 0 {
			continue
		}

		s.log.Warn().Str("contest_id", id).Int("winners", len(missing)).Msg("recovering interrupted distribution")
		if err := s.dist.Distribute(ctx, contest, missing); err != nil {
			s.log.Error().Err(err).Str("contest_id", id).Msg("recovery distribution failed")
		}
	}
	return nil
}
