package memory

import (
	"context"
	"sync"

	"contest-engine-backend/internal/features/pool/models"
	"contest-engine-backend/internal/features/pool/repository"
)

// Repository is an in-memory ledger used by tests. A single mutex makes the
// check-and-move triad atomic, matching the contract the Redis scripts
// provide in production.
type Repository struct {
	mu      sync.Mutex
	entries map[string]*models.PoolEntry
}

func NewPoolRepository() *Repository {
	return &Repository{entries: make(map[string]*models.PoolEntry)}
}

func (r *Repository) entry(giftID string) *models.PoolEntry {
	e, ok := r.entries[giftID]
	if !ok {
		e = &models.PoolEntry{GiftID: giftID}
		r.entries[giftID] = e
	}
	return e
}

func (r *Repository) Reserve(_ context.Context, giftID string, qty int64) (bool, error) {
	if qty <= 0 {
		return false, models.ErrNegativeQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(giftID)
	if e.Availability() < qty {
		return false, nil
	}
	e.Reserved += qty
	return true, nil
}

func (r *Repository) Release(_ context.Context, giftID string, qty int64) (bool, error) {
	if qty <= 0 {
		return false, models.ErrNegativeQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(giftID)
	if e.Reserved < qty {
		return false, nil
	}
	e.Reserved -= qty
	return true, nil
}

func (r *Repository) Consume(_ context.Context, giftID string, qty int64) (bool, error) {
	if qty <= 0 {
		return false, models.ErrNegativeQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(giftID)
	if e.Reserved < qty {
		return false, nil
	}
	e.Reserved -= qty
	e.Consumed += qty
	return true, nil
}

func (r *Repository) Get(_ context.Context, giftID string) (*models.PoolEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[giftID]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *Repository) SetTotal(_ context.Context, giftID string, total int64) error {
	if total < 0 {
		return models.ErrNegativeQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(giftID)
	if total < e.Reserved+e.Consumed {
		return models.ErrLedgerInvariant
	}
	e.Total = total
	return nil
}

var _ repository.PoolRepository = (*Repository)(nil)
