package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"contest-engine-backend/internal/features/contest/models"
	"contest-engine-backend/internal/features/contest/repository"
)

const (
	keyPrefixContest      = "contest:"
	keyPrefixDistribution = "dist:"
	keyPrefixDistIndex    = "dist:key:"
	keyActiveContests     = "contests:active"
	keyCompletedContests  = "contests:completed"
)

func makeContestKey(id string) string {
	return keyPrefixContest + id
}

func makeCountersKey(id string) string {
	return makeContestKey(id) + ":counters"
}

func makeParticipantsKey(id string) string {
	return makeContestKey(id) + ":participants"
}

func makeStatsKey(contestID string, telegramID int64) string {
	return makeContestKey(contestID) + ":stats:" + strconv.FormatInt(telegramID, 10)
}

func makeBoostKey(contestID string, telegramID int64) string {
	return makeContestKey(contestID) + ":boost:" + strconv.FormatInt(telegramID, 10)
}

func makeSecondChanceKey(contestID string) string {
	return makeContestKey(contestID) + ":secondchance"
}

func makeDistributionKey(id string) string {
	return keyPrefixDistribution + id
}

func makeDistributionSetKey(contestID string) string {
	return makeContestKey(contestID) + ":distributions"
}

// applyActivityScript performs the whole scoring mutation server-side:
// lazy participant registration, per-action counters, the point total and
// the contest aggregates are all plain increments, so concurrent unordered
// deliveries never lose updates.
var applyActivityScript = redis.NewScript(`
local added = redis.call('SADD', KEYS[2], ARGV[1])
if added == 1 then
  redis.call('HINCRBY', KEYS[3], 'participants', 1)
end
redis.call('HINCRBY', KEYS[1], 'points', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('HINCRBY', KEYS[1], 'reactions', ARGV[3])
  redis.call('HINCRBY', KEYS[3], 'total_reactions', ARGV[3])
end
if tonumber(ARGV[4]) > 0 then
  redis.call('HINCRBY', KEYS[1], 'comments', ARGV[4])
  redis.call('HINCRBY', KEYS[3], 'total_comments', ARGV[4])
end
if tonumber(ARGV[5]) > 0 then
  redis.call('HINCRBY', KEYS[1], 'replies', ARGV[5])
  redis.call('HINCRBY', KEYS[3], 'total_comments', ARGV[5])
end
redis.call('HSET', KEYS[1], 'last_activity', ARGV[6])
return 1`)

// activateBoostScript admits a boost only when the cached multiplier shows
// no live boost for the pair. The liveness check and both writes run as one
// script, so concurrent purchases cannot both pass the exclusivity gate.
var activateBoostScript = redis.NewScript(`
local mult = tonumber(redis.call('HGET', KEYS[2], 'multiplier') or '1')
local exp = tonumber(redis.call('HGET', KEYS[2], 'boost_expires_at') or '0')
if mult > 1 and (exp == 0 or exp > tonumber(ARGV[1])) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('HSET', KEYS[2], 'multiplier', ARGV[3], 'boost_expires_at', ARGV[4])
return 1`)

type redisRepository struct {
	client *redis.Client
}

func NewRedisContestRepository(client *redis.Client) repository.ContestRepository {
	return &redisRepository{client: client}
}

func (r *redisRepository) Create(ctx context.Context, contest *models.Contest) error {
	data, err := json.Marshal(contest)
	if err != nil {
		return fmt.Errorf("failed to marshal contest: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, makeContestKey(contest.ID), data, 0)
	if contest.Status == models.ContestStatusActive {
		pipe.SAdd(ctx, keyActiveContests, contest.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetByID(ctx context.Context, id string) (*models.Contest, error) {
	data, err := r.client.Get(ctx, makeContestKey(id)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrContestNotFound
	}
	if err != nil {
		return nil, err
	}

	var contest models.Contest
	if err := json.Unmarshal(data, &contest); err != nil {
		return nil, err
	}

	// Aggregates live in a separate hash so the scoring path can increment
	// them without rewriting the document.
	counters, err := r.client.HGetAll(ctx, makeCountersKey(id)).Result()
	if err != nil {
		return nil, err
	}
	contest.TotalReactions, _ = strconv.ParseInt(counters["total_reactions"], 10, 64)
	contest.TotalComments, _ = strconv.ParseInt(counters["total_comments"], 10, 64)
	contest.Participants, _ = strconv.ParseInt(counters["participants"], 10, 64)

	return &contest, nil
}

func (r *redisRepository) Update(ctx context.Context, contest *models.Contest) error {
	contest.UpdatedAt = time.Now()
	data, err := json.Marshal(contest)
	if err != nil {
		return fmt.Errorf("failed to marshal contest: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, makeContestKey(contest.ID), data, 0)
	switch contest.Status {
	case models.ContestStatusActive:
		pipe.SAdd(ctx, keyActiveContests, contest.ID)
	case models.ContestStatusCompleted:
		pipe.SRem(ctx, keyActiveContests, contest.ID)
		pipe.SAdd(ctx, keyCompletedContests, contest.ID)
	case models.ContestStatusCancelled:
		pipe.SRem(ctx, keyActiveContests, contest.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) UpdateStatusIf(ctx context.Context, id string, expected, next models.ContestStatus) (bool, error) {
	key := makeContestKey(id)
	var moved bool

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return repository.ErrContestNotFound
		}
		if err != nil {
			return err
		}

		var contest models.Contest
		if err := json.Unmarshal(data, &contest); err != nil {
			return err
		}
		if contest.Status != expected {
			moved = false
			return nil
		}

		contest.Status = next
		contest.UpdatedAt = time.Now()
		updated, err := json.Marshal(&contest)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			switch next {
			case models.ContestStatusActive:
				pipe.SAdd(ctx, keyActiveContests, id)
			case models.ContestStatusCompleted:
				pipe.SRem(ctx, keyActiveContests, id)
				pipe.SAdd(ctx, keyCompletedContests, id)
			case models.ContestStatusCancelled:
				pipe.SRem(ctx, keyActiveContests, id)
			}
			return nil
		})
		if err == nil {
			moved = true
		}
		return err
	}

	// Optimistic retry loop: a concurrent writer aborts the WATCH and we
	// re-read; losing the race means the guard re-evaluates.
	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		return moved, err
	}
	return false, repository.ErrAlreadyLocked
}

// expiredWithStatus scans the active set for contests in status whose window
// elapsed. A completing contest stays in the active set until the completed
// write removes it, so crashed completions remain discoverable here.
func (r *redisRepository) expiredWithStatus(ctx context.Context, status models.ContestStatus, now time.Time) ([]string, error) {
	ids, err := r.client.SMembers(ctx, keyActiveContests).Result()
	if err != nil {
		return nil, err
	}

	var expired []string
	for _, id := range ids {
		contest, err := r.GetByID(ctx, id)
		if err == repository.ErrContestNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if contest.Status == status && contest.HasEnded(now) {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (r *redisRepository) GetExpiredActive(ctx context.Context, now time.Time) ([]string, error) {
	return r.expiredWithStatus(ctx, models.ContestStatusActive, now)
}

func (r *redisRepository) GetStuckCompleting(ctx context.Context, now time.Time) ([]string, error) {
	return r.expiredWithStatus(ctx, models.ContestStatusCompleting, now)
}

func (r *redisRepository) GetCompletedIDs(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, keyCompletedContests).Result()
}

func (r *redisRepository) ApplyActivity(ctx context.Context, contestID string, telegramID int64, delta repository.ActivityDelta) error {
	keys := []string{
		makeStatsKey(contestID, telegramID),
		makeParticipantsKey(contestID),
		makeCountersKey(contestID),
	}
	return applyActivityScript.Run(ctx, r.client, keys,
		telegramID,
		delta.Points,
		delta.Reactions,
		delta.Comments,
		delta.Replies,
		delta.LastActivity.UnixNano(),
	).Err()
}

func statsFromHash(contestID string, telegramID int64, fields map[string]string) models.ParticipantStats {
	stats := models.ParticipantStats{
		ContestID:  contestID,
		TelegramID: telegramID,
		Multiplier: 1.0,
	}
	stats.Points, _ = strconv.ParseInt(fields["points"], 10, 64)
	stats.Reactions, _ = strconv.ParseInt(fields["reactions"], 10, 64)
	stats.Comments, _ = strconv.ParseInt(fields["comments"], 10, 64)
	stats.Replies, _ = strconv.ParseInt(fields["replies"], 10, 64)
	if raw, ok := fields["multiplier"]; ok {
		if m, err := strconv.ParseFloat(raw, 64); err == nil && m > 0 {
			stats.Multiplier = m
		}
	}
	if raw, ok := fields["boost_expires_at"]; ok && raw != "" {
		if nanos, err := strconv.ParseInt(raw, 10, 64); err == nil && nanos > 0 {
			t := time.Unix(0, nanos)
			stats.BoostExpiresAt = &t
		}
	}
	if raw, ok := fields["last_activity"]; ok {
		if nanos, err := strconv.ParseInt(raw, 10, 64); err == nil {
			stats.LastActivity = time.Unix(0, nanos)
		}
	}
	return stats
}

func (r *redisRepository) GetStats(ctx context.Context, contestID string, telegramID int64) (*models.ParticipantStats, error) {
	fields, err := r.client.HGetAll(ctx, makeStatsKey(contestID, telegramID)).Result()
	if err != nil {
		return nil, err
	}
	// Lazily created: an absent hash is a zero record with multiplier 1.
	stats := statsFromHash(contestID, telegramID, fields)
	return &stats, nil
}

func (r *redisRepository) ListStats(ctx context.Context, contestID string) ([]models.ParticipantStats, error) {
	members, err := r.client.SMembers(ctx, makeParticipantsKey(contestID)).Result()
	if err != nil {
		return nil, err
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	ids := make([]int64, len(members))
	for i, member := range members {
		tid, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt participant id %q: %w", member, err)
		}
		ids[i] = tid
		cmds[i] = pipe.HGetAll(ctx, makeStatsKey(contestID, tid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	stats := make([]models.ParticipantStats, 0, len(members))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, err
		}
		stats = append(stats, statsFromHash(contestID, ids[i], fields))
	}
	return stats, nil
}

func (r *redisRepository) ActivateBoost(ctx context.Context, boost *models.Boost, now time.Time) (bool, error) {
	data, err := json.Marshal(boost)
	if err != nil {
		return false, fmt.Errorf("failed to marshal boost: %w", err)
	}
	expires := int64(0)
	if boost.ExpiresAt != nil {
		expires = boost.ExpiresAt.UnixNano()
	}

	keys := []string{
		makeBoostKey(boost.ContestID, boost.TelegramID),
		makeStatsKey(boost.ContestID, boost.TelegramID),
	}
	res, err := activateBoostScript.Run(ctx, r.client, keys,
		now.UnixNano(),
		data,
		strconv.FormatFloat(boost.Multiplier, 'f', -1, 64),
		expires,
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (r *redisRepository) GetBoost(ctx context.Context, contestID string, telegramID int64) (*models.Boost, error) {
	data, err := r.client.Get(ctx, makeBoostKey(contestID, telegramID)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrBoostNotFound
	}
	if err != nil {
		return nil, err
	}

	var boost models.Boost
	if err := json.Unmarshal(data, &boost); err != nil {
		return nil, err
	}
	return &boost, nil
}

func (r *redisRepository) DeactivateBoost(ctx context.Context, contestID string, telegramID int64) error {
	statsKey := makeStatsKey(contestID, telegramID)

	boost, err := r.GetBoost(ctx, contestID, telegramID)
	if err == repository.ErrBoostNotFound {
		// Nothing to deactivate; still reset the cached multiplier.
		return r.client.HSet(ctx, statsKey, "multiplier", "1", "boost_expires_at", 0).Err()
	}
	if err != nil {
		return err
	}

	boost.IsActive = false
	data, err := json.Marshal(boost)
	if err != nil {
		return fmt.Errorf("failed to marshal boost: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, makeBoostKey(contestID, telegramID), data, 0)
	pipe.HSet(ctx, statsKey, "multiplier", "1", "boost_expires_at", 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetDistribution(ctx context.Context, contestID string, telegramID int64, position int) (*models.PrizeDistribution, error) {
	id, err := r.client.Get(ctx, keyPrefixDistIndex+models.DistributionKey(contestID, telegramID, position)).Result()
	if err == redis.Nil {
		return nil, repository.ErrDistributionNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetDistributionByID(ctx, id)
}

func (r *redisRepository) GetDistributionByID(ctx context.Context, id string) (*models.PrizeDistribution, error) {
	data, err := r.client.Get(ctx, makeDistributionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrDistributionNotFound
	}
	if err != nil {
		return nil, err
	}

	var record models.PrizeDistribution
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *redisRepository) SaveDistribution(ctx context.Context, record *models.PrizeDistribution) error {
	record.UpdatedAt = time.Now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal distribution: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, makeDistributionKey(record.ID), data, 0)
	pipe.Set(ctx, keyPrefixDistIndex+record.Key(), record.ID, 0)
	pipe.SAdd(ctx, makeDistributionSetKey(record.ContestID), record.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) ListDistributions(ctx context.Context, contestID string) ([]*models.PrizeDistribution, error) {
	ids, err := r.client.SMembers(ctx, makeDistributionSetKey(contestID)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*models.PrizeDistribution, 0, len(ids))
	for _, id := range ids {
		record, err := r.GetDistributionByID(ctx, id)
		if err == repository.ErrDistributionNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *redisRepository) AddSecondChanceEntry(ctx context.Context, entry *models.SecondChanceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	added, err := r.client.HSetNX(ctx, makeSecondChanceKey(entry.ContestID), strconv.FormatInt(entry.TelegramID, 10), data).Result()
	if err != nil {
		return err
	}
	if !added {
		return repository.ErrDuplicateEntry
	}
	return nil
}

func (r *redisRepository) ListSecondChanceEntries(ctx context.Context, contestID string) ([]models.SecondChanceEntry, error) {
	fields, err := r.client.HGetAll(ctx, makeSecondChanceKey(contestID)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.SecondChanceEntry, 0, len(fields))
	for _, raw := range fields {
		var entry models.SecondChanceEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *redisRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, key, "locked", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrAlreadyLocked
	}
	return nil
}

func (r *redisRepository) ReleaseLock(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
