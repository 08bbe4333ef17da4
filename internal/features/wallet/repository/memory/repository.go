package memory

import (
	"context"
	"sync"

	"contest-engine-backend/internal/features/wallet/repository"
)

// Repository is the in-memory wallet store used by tests.
type Repository struct {
	mu        sync.RWMutex
	addresses map[int64]string
}

func NewWalletRepository() *Repository {
	return &Repository{addresses: make(map[int64]string)}
}

func (r *Repository) GetAddress(_ context.Context, telegramID int64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addr, ok := r.addresses[telegramID]
	if !ok {
		return "", repository.ErrAddressNotFound
	}
	return addr, nil
}

func (r *Repository) SetAddress(_ context.Context, telegramID int64, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.addresses[telegramID] = address
	return nil
}

var _ repository.WalletRepository = (*Repository)(nil)
