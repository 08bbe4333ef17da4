package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"contest-engine-backend/internal/features/wallet/repository"
)

const keyPrefixWallet = "wallet:addr:"

type redisRepository struct {
	client redis.Cmdable
}

func NewRedisWalletRepository(client redis.Cmdable) repository.WalletRepository {
	return &redisRepository{client: client}
}

func makeWalletKey(telegramID int64) string {
	return keyPrefixWallet + strconv.FormatInt(telegramID, 10)
}

func (r *redisRepository) GetAddress(ctx context.Context, telegramID int64) (string, error) {
	addr, err := r.client.Get(ctx, makeWalletKey(telegramID)).Result()
	if err == redis.Nil {
		return "", repository.ErrAddressNotFound
	}
	if err != nil {
		return "", err
	}
	return addr, nil
}

func (r *redisRepository) SetAddress(ctx context.Context, telegramID int64, address string) error {
	return r.client.Set(ctx, makeWalletKey(telegramID), address, 0).Err()
}
