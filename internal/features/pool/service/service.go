package service

import (
	"context"

	"github.com/rs/zerolog"

	apperrors "contest-engine-backend/internal/common/errors"
	"contest-engine-backend/internal/common/logger"
	"contest-engine-backend/internal/common/validation"
	"contest-engine-backend/internal/features/pool/models"
	"contest-engine-backend/internal/features/pool/repository"
)

// PoolService exposes the gift-pool reservation protocol: atomic reserve,
// release and consume against a shared, finite inventory.
type PoolService struct {
	repo repository.PoolRepository
	log  zerolog.Logger
}

func NewPoolService(repo repository.PoolRepository) *PoolService {
	return &PoolService{repo: repo, log: logger.Component("pool")}
}

// Reserve places a provisional hold of qty units on the gift. Returns false
// when the pool cannot cover the request; over-reservation is impossible by
// construction of the repository operation.
func (s *PoolService) Reserve(ctx context.Context, giftID string, qty int64) (bool, error) {
	if err := validation.ValidatePositiveInt(qty, "qty"); err != nil {
		return false, apperrors.NewValidationError("qty", err.Error())
	}
	ok, err := s.repo.Reserve(ctx, giftID, qty)
	if err != nil {
		return false, apperrors.NewDatabaseError("pool reserve", err)
	}
	if !ok {
		s.log.Debug().Str("gift_id", giftID).Int64("qty", qty).Msg("reservation declined, insufficient availability")
	}
	return ok, nil
}

// Release abandons a prior hold, e.g. on contest cancellation.
func (s *PoolService) Release(ctx context.Context, giftID string, qty int64) (bool, error) {
	if err := validation.ValidatePositiveInt(qty, "qty"); err != nil {
		return false, apperrors.NewValidationError("qty", err.Error())
	}
	ok, err := s.repo.Release(ctx, giftID, qty)
	if err != nil {
		return false, apperrors.NewDatabaseError("pool release", err)
	}
	return ok, nil
}

// Consume converts a hold into a spent unit after a confirmed send.
func (s *PoolService) Consume(ctx context.Context, giftID string, qty int64) (bool, error) {
	if err := validation.ValidatePositiveInt(qty, "qty"); err != nil {
		return false, apperrors.NewValidationError("qty", err.Error())
	}
	ok, err := s.repo.Consume(ctx, giftID, qty)
	if err != nil {
		return false, apperrors.NewDatabaseError("pool consume", err)
	}
	return ok, nil
}

// Availability returns total - reserved - consumed; zero for unknown gifts.
func (s *PoolService) Availability(ctx context.Context, giftID string) (int64, error) {
	entry, err := s.repo.Get(ctx, giftID)
	if err == repository.ErrEntryNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewDatabaseError("pool get", err)
	}
	return entry.Availability(), nil
}

// Entry returns the raw ledger row for the admin surface.
func (s *PoolService) Entry(ctx context.Context, giftID string) (*models.PoolEntry, error) {
	entry, err := s.repo.Get(ctx, giftID)
	if err == repository.ErrEntryNotFound {
		return nil, apperrors.NewNotFoundError("pool entry", giftID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("pool get", err)
	}
	return entry, nil
}

// SetTotal resizes the inventory for a gift id.
func (s *PoolService) SetTotal(ctx context.Context, giftID string, total int64) error {
	if err := validation.ValidateNonNegativeInt(total, "total"); err != nil {
		return apperrors.NewValidationError("total", err.Error())
	}
	if err := s.repo.SetTotal(ctx, giftID, total); err != nil {
		if err == models.ErrLedgerInvariant {
			return apperrors.NewInvariantError(apperrors.ErrCodePoolInvariant, "total cannot shrink below reserved + consumed")
		}
		return apperrors.NewDatabaseError("pool set total", err)
	}
	return nil
}
