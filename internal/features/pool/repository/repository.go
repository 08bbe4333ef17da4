package repository

import (
	"context"
	"errors"

	"contest-engine-backend/internal/features/pool/models"
)

var ErrEntryNotFound = errors.New("pool entry not found")

// PoolRepository is the transactional ledger over fungible prize units.
// Reserve, Release and Consume each evaluate their precondition and apply
// the mutation as one indivisible operation; implementations must not split
// them into check-then-write steps.
type PoolRepository interface {
	// Reserve increments reserved by qty only if availability >= qty held
	// beforehand. Returns false (not an error) when the condition fails.
	Reserve(ctx context.Context, giftID string, qty int64) (bool, error)

	// Release moves qty back from reserved to available. Returns false when
	// reserved < qty.
	Release(ctx context.Context, giftID string, qty int64) (bool, error)

	// Consume moves qty from reserved to consumed atomically: there is no
	// intermediate state where neither holds. Returns false when
	// reserved < qty.
	Consume(ctx context.Context, giftID string, qty int64) (bool, error)

	Get(ctx context.Context, giftID string) (*models.PoolEntry, error)

	// SetTotal upserts the inventory size for a gift id. Shrinking below
	// reserved + consumed is rejected.
	SetTotal(ctx context.Context, giftID string, total int64) error
}
