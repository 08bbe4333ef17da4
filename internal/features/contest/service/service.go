package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "contest-engine-backend/internal/common/errors"
	"contest-engine-backend/internal/common/logger"
	"contest-engine-backend/internal/features/contest/models"
	"contest-engine-backend/internal/features/contest/repository"
	poolservice "contest-engine-backend/internal/features/pool/service"
)

// ContestService drives the contest lifecycle: creation, payment gating,
// activation with window stamping, cancellation and the second-chance opt-in.
type ContestService struct {
	repo repository.ContestRepository
	pool *poolservice.PoolService
	now  func() time.Time
	log  zerolog.Logger
}

func NewContestService(repo repository.ContestRepository, pool *poolservice.PoolService) *ContestService {
	return &ContestService{
		repo: repo,
		pool: pool,
		now:  time.Now,
		log:  logger.Component("contest"),
	}
}

// Create validates the configuration and persists the contest as a draft.
// The window is not stamped until activation.
func (s *ContestService) Create(ctx context.Context, req *models.ContestCreate) (*models.Contest, error) {
	contest := &models.Contest{
		ID:           uuid.New().String(),
		ChannelID:    req.ChannelID,
		Status:       models.ContestStatusDraft,
		ActivityType: req.ActivityType,
		Duration:     req.Duration,
		WinnersCount: req.WinnersCount,
		Prizes:       req.Prizes,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}
	if err := contest.Validate(); err != nil {
		return nil, apperrors.NewValidationError("contest", err.Error())
	}
	if err := s.repo.Create(ctx, contest); err != nil {
		return nil, apperrors.NewDatabaseError("create contest", err)
	}
	s.log.Info().Str("contest_id", contest.ID).Int64("channel_id", contest.ChannelID).Msg("contest created")
	return contest, nil
}

// GetByID fetches one contest with its live aggregates.
func (s *ContestService) GetByID(ctx context.Context, id string) (*models.Contest, error) {
	contest, err := s.repo.GetByID(ctx, id)
	if err == repository.ErrContestNotFound {
		return nil, ErrContestNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get contest", err)
	}
	return contest, nil
}

// MarkAwaitingPayment moves a draft into the payment gate.
func (s *ContestService) MarkAwaitingPayment(ctx context.Context, id string) (*models.Contest, error) {
	return s.transition(ctx, id, models.ContestStatusDraft, models.ContestStatusPendingPayment, nil)
}

// Activate opens the contest. This is the only place the window is stamped:
// StartsAt is the activation instant, EndsAt derives from the configured
// duration. Pool reservations for pooled prizes are taken best effort; a
// depleted pool does not block activation because delivery can fall back to
// on-demand sourcing.
func (s *ContestService) Activate(ctx context.Context, id string) (*models.Contest, error) {
	contest, err := s.transition(ctx, id, models.ContestStatusPendingPayment, models.ContestStatusActive, func(c *models.Contest) {
		start := s.now()
		end := start.Add(time.Duration(c.Duration))
		c.StartsAt = &start
		c.EndsAt = &end
	})
	if err != nil {
		return nil, err
	}

	reserved := false
	for i := range contest.Prizes {
		prize := &contest.Prizes[i]
		if prize.Kind != models.PrizeKindPooledGift {
			continue
		}
		ok, err := s.pool.Reserve(ctx, prize.GiftID, 1)
		if err != nil {
			s.log.Warn().Err(err).Str("gift_id", prize.GiftID).Msg("pool reservation failed at activation")
			continue
		}
		if !ok {
			s.log.Info().Str("gift_id", prize.GiftID).Msg("pool could not cover prize at activation, will source on demand")
			continue
		}
		// The mark ties the hold to this slot; cancellation releases only
		// marked slots.
		prize.Reserved = true
		reserved = true
	}
	if reserved {
		if err := s.repo.Update(ctx, contest); err != nil {
			s.log.Warn().Err(err).Str("contest_id", contest.ID).Msg("failed to persist pool holds")
		}
	}

	s.log.Info().
		Str("contest_id", contest.ID).
		Time("starts_at", *contest.StartsAt).
		Time("ends_at", *contest.EndsAt).
		Msg("contest activated")
	return contest, nil
}

// Cancel terminates an active contest and releases its own pool holds. Only
// slots marked reserved at activation are released; holds taken by other
// contests on the same gift are untouched. No winners are drawn and no
// prizes are distributed.
func (s *ContestService) Cancel(ctx context.Context, id string) (*models.Contest, error) {
	contest, err := s.transition(ctx, id, models.ContestStatusActive, models.ContestStatusCancelled, nil)
	if err != nil {
		return nil, err
	}

	released := false
	for i := range contest.Prizes {
		prize := &contest.Prizes[i]
		if prize.Kind != models.PrizeKindPooledGift || !prize.Reserved {
			continue
		}
		ok, err := s.pool.Release(ctx, prize.GiftID, 1)
		if err != nil {
			s.log.Warn().Err(err).Str("gift_id", prize.GiftID).Msg("pool release failed on cancellation")
			continue
		}
		if ok {
			prize.Reserved = false
			released = true
		}
	}
	if released {
		if err := s.repo.Update(ctx, contest); err != nil {
			s.log.Warn().Err(err).Str("contest_id", contest.ID).Msg("failed to persist released holds")
		}
	}

	s.log.Info().Str("contest_id", contest.ID).Msg("contest cancelled")
	return contest, nil
}

// transition performs a conditional status move and, on success, applies
// mutate to the reloaded document and persists it. The conditional update is
// the concurrency guard; mutate only runs on the winning caller.
func (s *ContestService) transition(ctx context.Context, id string, expected, next models.ContestStatus, mutate func(*models.Contest)) (*models.Contest, error) {
	moved, err := s.repo.UpdateStatusIf(ctx, id, expected, next)
	if err == repository.ErrContestNotFound {
		return nil, ErrContestNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("update contest status", err)
	}
	if !moved {
		return nil, apperrors.New(apperrors.ErrCodeInvalidTransition, apperrors.KindPrecondition, "invalid contest status transition").
			WithDetail("contest_id", id).
			WithDetail("expected", string(expected)).
			WithDetail("next", string(next))
	}

	contest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get contest", err)
	}
	if mutate != nil {
		mutate(contest)
		contest.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, contest); err != nil {
			return nil, apperrors.NewDatabaseError("update contest", err)
		}
	}
	return contest, nil
}

// JoinSecondChance registers a non-winning participant for the delayed bonus
// draw of a completed contest. Winners of the main draw are excluded and a
// repeated opt-in is rejected.
func (s *ContestService) JoinSecondChance(ctx context.Context, contestID string, telegramID int64, proof string) error {
	contest, err := s.GetByID(ctx, contestID)
	if err != nil {
		return err
	}
	if contest.Status != models.ContestStatusCompleted {
		return apperrors.New(apperrors.ErrCodeConflict, apperrors.KindPrecondition, "second chance opt-in requires a completed contest").
			WithDetail("status", string(contest.Status))
	}
	if contest.SecondChanceDrawnAt != nil {
		return apperrors.New(apperrors.ErrCodeConflict, apperrors.KindPrecondition, "second chance draw already happened")
	}
	if contest.IsWinner(telegramID) {
		return apperrors.New(apperrors.ErrCodeConflict, apperrors.KindPrecondition, "winners cannot enter the second chance draw")
	}

	entry := &models.SecondChanceEntry{
		ContestID:  contestID,
		TelegramID: telegramID,
		Proof:      proof,
		CreatedAt:  s.now(),
	}
	if err := s.repo.AddSecondChanceEntry(ctx, entry); err == repository.ErrDuplicateEntry {
		return ErrAlreadyOptedIn
	} else if err != nil {
		return apperrors.NewDatabaseError("add second chance entry", err)
	}

	s.log.Info().Str("contest_id", contestID).Int64("telegram_id", telegramID).Msg("second chance opt-in recorded")
	return nil
}
