package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"contest-engine-backend/internal/features/pool/models"
	"contest-engine-backend/internal/features/pool/repository"
)

const keyPrefixPool = "pool:gift:"

// Each script runs server-side so the availability check and the counter
// move are one indivisible unit under concurrent reservers.
var (
	reserveScript = redis.NewScript(`
local total = tonumber(redis.call('HGET', KEYS[1], 'total') or '0')
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved') or '0')
local consumed = tonumber(redis.call('HGET', KEYS[1], 'consumed') or '0')
local qty = tonumber(ARGV[1])
if total - reserved - consumed >= qty then
  redis.call('HINCRBY', KEYS[1], 'reserved', qty)
  return 1
end
return 0`)

	releaseScript = redis.NewScript(`
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved') or '0')
local qty = tonumber(ARGV[1])
if reserved >= qty then
  redis.call('HINCRBY', KEYS[1], 'reserved', -qty)
  return 1
end
return 0`)

	consumeScript = redis.NewScript(`
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved') or '0')
local qty = tonumber(ARGV[1])
if reserved >= qty then
  redis.call('HINCRBY', KEYS[1], 'reserved', -qty)
  redis.call('HINCRBY', KEYS[1], 'consumed', qty)
  return 1
end
return 0`)

	setTotalScript = redis.NewScript(`
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved') or '0')
local consumed = tonumber(redis.call('HGET', KEYS[1], 'consumed') or '0')
local total = tonumber(ARGV[1])
if total < reserved + consumed then
  return 0
end
redis.call('HSET', KEYS[1], 'total', total)
return 1`)
)

type redisRepository struct {
	client redis.Cmdable
}

func NewRedisPoolRepository(client redis.Cmdable) repository.PoolRepository {
	return &redisRepository{client: client}
}

func makePoolKey(giftID string) string {
	return keyPrefixPool + giftID
}

func (r *redisRepository) runConditional(ctx context.Context, script *redis.Script, giftID string, qty int64) (bool, error) {
	if qty <= 0 {
		return false, models.ErrNegativeQuantity
	}
	res, err := script.Run(ctx, r.client, []string{makePoolKey(giftID)}, qty).Int()
	if err != nil {
		return false, fmt.Errorf("pool script failed for gift %s: %w", giftID, err)
	}
	return res == 1, nil
}

func (r *redisRepository) Reserve(ctx context.Context, giftID string, qty int64) (bool, error) {
	return r.runConditional(ctx, reserveScript, giftID, qty)
}

func (r *redisRepository) Release(ctx context.Context, giftID string, qty int64) (bool, error) {
	return r.runConditional(ctx, releaseScript, giftID, qty)
}

func (r *redisRepository) Consume(ctx context.Context, giftID string, qty int64) (bool, error) {
	return r.runConditional(ctx, consumeScript, giftID, qty)
}

func (r *redisRepository) Get(ctx context.Context, giftID string) (*models.PoolEntry, error) {
	fields, err := r.client.HGetAll(ctx, makePoolKey(giftID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, repository.ErrEntryNotFound
	}

	entry := &models.PoolEntry{GiftID: giftID}
	entry.Total, _ = strconv.ParseInt(fields["total"], 10, 64)
	entry.Reserved, _ = strconv.ParseInt(fields["reserved"], 10, 64)
	entry.Consumed, _ = strconv.ParseInt(fields["consumed"], 10, 64)
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *redisRepository) SetTotal(ctx context.Context, giftID string, total int64) error {
	if total < 0 {
		return models.ErrNegativeQuantity
	}
	res, err := setTotalScript.Run(ctx, r.client, []string{makePoolKey(giftID)}, total).Int()
	if err != nil {
		return fmt.Errorf("set total failed for gift %s: %w", giftID, err)
	}
	if res != 1 {
		return models.ErrLedgerInvariant
	}
	return nil
}
