package service

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	apperrors "contest-engine-backend/internal/common/errors"
	"contest-engine-backend/internal/common/logger"
	"contest-engine-backend/internal/common/validation"
	"contest-engine-backend/internal/features/contest/models"
	"contest-engine-backend/internal/features/contest/repository"
)

// ScoringService converts raw engagement signals into idempotent point
// accrual per (participant, contest), with time-limited multiplicative
// boosts applied at call time.
type ScoringService struct {
	repo repository.ContestRepository
	now  func() time.Time
	log  zerolog.Logger
}

func NewScoringService(repo repository.ContestRepository) *ScoringService {
	return &ScoringService{
		repo: repo,
		now:  time.Now,
		log:  logger.Component("scoring"),
	}
}

// ApplyActivity awards points for one engagement action. The contest state
// is re-checked at call time, never cached. Action kinds excluded by the
// contest's activity type silently award zero and record nothing.
func (s *ScoringService) ApplyActivity(ctx context.Context, contestID string, telegramID int64, kind models.ActionKind) (int64, error) {
	base, err := kind.BasePoints()
	if err != nil {
		return 0, apperrors.NewValidationError("action_kind", err.Error())
	}

	contest, err := s.repo.GetByID(ctx, contestID)
	if err == repository.ErrContestNotFound {
		return 0, ErrContestNotFound
	}
	if err != nil {
		return 0, apperrors.NewDatabaseError("get contest", err)
	}

	now := s.now()
	if !contest.AcceptsActivity(now) {
		return 0, ErrContestNotAcceptingActivity
	}
	if !contest.CountsAction(kind) {
		// Excluded kind: not an error, and no state is recorded.
		return 0, nil
	}

	stats, err := s.repo.GetStats(ctx, contestID, telegramID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("get stats", err)
	}

	mult, expired := stats.EffectiveMultiplier(now)
	if expired {
		// Lazy deactivation: the read path self-corrects, no sweep job.
		if err := s.repo.DeactivateBoost(ctx, contestID, telegramID); err != nil {
			return 0, apperrors.NewDatabaseError("deactivate boost", err)
		}
		s.log.Debug().Str("contest_id", contestID).Int64("telegram_id", telegramID).Msg("expired boost deactivated on read")
	}

	points := int64(math.Round(float64(base) * mult))

	delta := repository.ActivityDelta{Points: points, LastActivity: now}
	switch kind {
	case models.ActionReaction:
		delta.Reactions = 1
	case models.ActionComment:
		delta.Comments = 1
	case models.ActionReply:
		delta.Replies = 1
	}

	if err := s.repo.ApplyActivity(ctx, contestID, telegramID, delta); err != nil {
		return 0, apperrors.NewDatabaseError("apply activity", err)
	}

	return points, nil
}

// ApplyBoost activates a purchased multiplier for the participant. At most
// one active boost per (participant, contest); acquiring a second one is
// rejected. Activation refreshes the cached multiplier in the same store
// operation so subsequent scoring calls pick it up without a join.
func (s *ScoringService) ApplyBoost(ctx context.Context, contestID string, telegramID int64, boostType models.BoostType, priceUnits int64) (*models.Boost, error) {
	if err := validation.ValidatePositiveInt(priceUnits, "price_units"); err != nil {
		return nil, apperrors.NewValidationError("price_units", err.Error())
	}

	mult, err := boostType.Multiplier()
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUnknownBoostType, apperrors.KindPrecondition, err.Error())
	}

	contest, err := s.repo.GetByID(ctx, contestID)
	if err == repository.ErrContestNotFound {
		return nil, ErrContestNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get contest", err)
	}

	now := s.now()
	if !contest.AcceptsActivity(now) {
		return nil, ErrContestNotAcceptingActivity
	}

	boost := &models.Boost{
		ContestID:   contestID,
		TelegramID:  telegramID,
		Type:        boostType,
		Multiplier:  mult,
		PriceUnits:  priceUnits,
		ActivatedAt: now,
		IsActive:    true,
	}
	if lifetime := boostType.Lifetime(); lifetime > 0 {
		expires := now.Add(lifetime)
		boost.ExpiresAt = &expires
	}
	// A boost with no expiry of its own is implicitly bounded by the
	// contest window: scoring refuses activity past ends_at anyway.

	// The conditional save is the exclusivity gate: an expired boost is
	// overwritten, a live one blocks with no partial write.
	ok, err := s.repo.ActivateBoost(ctx, boost, now)
	if err != nil {
		return nil, apperrors.NewDatabaseError("activate boost", err)
	}
	if !ok {
		return nil, ErrBoostAlreadyActive
	}

	s.log.Info().
		Str("contest_id", contestID).
		Int64("telegram_id", telegramID).
		Str("type", string(boostType)).
		Float64("multiplier", mult).
		Msg("boost activated")
	return boost, nil
}
