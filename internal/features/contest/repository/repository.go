package repository

import (
	"context"
	"errors"
	"time"

	"contest-engine-backend/internal/features/contest/models"
)

var (
	ErrContestNotFound      = errors.New("contest not found")
	ErrStatsNotFound        = errors.New("participant stats not found")
	ErrBoostNotFound        = errors.New("boost not found")
	ErrDistributionNotFound = errors.New("distribution record not found")
	ErrDuplicateEntry       = errors.New("entry already exists")
	ErrAlreadyLocked        = errors.New("resource is already locked")
)

// ActivityDelta is one atomic scoring mutation: every field is applied as an
// increment against the stored record, never as a read-then-write-back.
type ActivityDelta struct {
	Points       int64
	Reactions    int64
	Comments     int64
	Replies      int64
	LastActivity time.Time
}

// ContestRepository is the single consistent store behind the engine.
// Scoring increments and conditional status moves are atomic at this
// boundary.
type ContestRepository interface {
	Create(ctx context.Context, contest *models.Contest) error
	GetByID(ctx context.Context, id string) (*models.Contest, error)
	Update(ctx context.Context, contest *models.Contest) error

	// UpdateStatusIf moves id from expected to next as one conditional
	// update. Returns false without mutating when the current status does
	// not match expected; this is the double-processing guard.
	UpdateStatusIf(ctx context.Context, id string, expected, next models.ContestStatus) (bool, error)

	// GetExpiredActive returns ids of active contests whose window elapsed
	// before now.
	GetExpiredActive(ctx context.Context, now time.Time) ([]string, error)
	// GetStuckCompleting returns ids of contests left in completing past
	// their window, as after a crash between the claim and the completed
	// write.
	GetStuckCompleting(ctx context.Context, now time.Time) ([]string, error)
	GetCompletedIDs(ctx context.Context) ([]string, error)

	// ApplyActivity applies the delta to the (contest, participant) record
	// and the contest-level aggregates with atomic increments, creating the
	// stats record lazily on first use.
	ApplyActivity(ctx context.Context, contestID string, telegramID int64, delta ActivityDelta) error
	GetStats(ctx context.Context, contestID string, telegramID int64) (*models.ParticipantStats, error)
	ListStats(ctx context.Context, contestID string) ([]models.ParticipantStats, error)

	// ActivateBoost persists the boost and refreshes the participant's
	// cached multiplier, but only when no boost is live for the pair at
	// now. The liveness check and the write are one atomic operation, so
	// concurrent activations admit exactly one boost. Returns false when a
	// live boost blocks the activation.
	ActivateBoost(ctx context.Context, boost *models.Boost, now time.Time) (bool, error)
	GetBoost(ctx context.Context, contestID string, telegramID int64) (*models.Boost, error)
	// DeactivateBoost idempotently marks the boost inactive and resets the
	// cached multiplier to 1. Used by lazy expiry on the read path.
	DeactivateBoost(ctx context.Context, contestID string, telegramID int64) error

	GetDistribution(ctx context.Context, contestID string, telegramID int64, position int) (*models.PrizeDistribution, error)
	GetDistributionByID(ctx context.Context, id string) (*models.PrizeDistribution, error)
	SaveDistribution(ctx context.Context, record *models.PrizeDistribution) error
	ListDistributions(ctx context.Context, contestID string) ([]*models.PrizeDistribution, error)

	// AddSecondChanceEntry returns ErrDuplicateEntry for a repeated opt-in.
	AddSecondChanceEntry(ctx context.Context, entry *models.SecondChanceEntry) error
	ListSecondChanceEntries(ctx context.Context, contestID string) ([]models.SecondChanceEntry, error)

	AcquireLock(ctx context.Context, key string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string) error
}
