package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "contest-engine-backend/internal/common/errors"
	"contest-engine-backend/internal/common/logger"
	"contest-engine-backend/internal/features/contest/models"
	"contest-engine-backend/internal/features/contest/repository"
	poolservice "contest-engine-backend/internal/features/pool/service"
	walletrepo "contest-engine-backend/internal/features/wallet/repository"
)

// DistributionService resolves each winner's configured prize into a single
// delivery attempt against the correct resource class, tracks attempt state
// on PrizeDistribution records and supports resumable retries.
type DistributionService struct {
	repo    repository.ContestRepository
	pool    *poolservice.PoolService
	wallets walletrepo.WalletRepository
	sender  PrizeSender
	chain   ChainTransfer

	// limiter paces consecutive sends within one batch to protect the
	// external API from bursts.
	limiter     *rate.Limiter
	sendTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

func NewDistributionService(
	repo repository.ContestRepository,
	pool *poolservice.PoolService,
	wallets walletrepo.WalletRepository,
	sender PrizeSender,
	chain ChainTransfer,
	sendDelay, sendTimeout time.Duration,
) *DistributionService {
	if sendDelay <= 0 {
		sendDelay = DefaultSendDelay
	}
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &DistributionService{
		repo:        repo,
		pool:        pool,
		wallets:     wallets,
		sender:      sender,
		chain:       chain,
		limiter:     rate.NewLimiter(rate.Every(sendDelay), 1),
		sendTimeout: sendTimeout,
		now:         time.Now,
		log:         logger.Component("distribution"),
	}
}

// Distribute processes the winners strictly sequentially in position order.
// A failure for one winner is captured on its record and never aborts the
// rest of the batch.
func (s *DistributionService) Distribute(ctx context.Context, contest *models.Contest, winners []models.Winner) error {
	ordered := append([]models.Winner(nil), winners...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	for _, winner := range ordered {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.distributeOne(ctx, contest, winner); err != nil {
			s.log.Error().Err(err).
				Str("contest_id", contest.ID).
				Int64("telegram_id", winner.TelegramID).
				Int("position", winner.Position).
				Msg("prize distribution attempt failed")
		}
	}
	return nil
}

// Retry re-enters the per-winner logic for a failed record using the stored
// contest and prize configuration. It is the only recovery path for a
// failed record and respects the attempt ceiling.
func (s *DistributionService) Retry(ctx context.Context, distributionID string) (*models.PrizeDistribution, error) {
	record, err := s.repo.GetDistributionByID(ctx, distributionID)
	if err == repository.ErrDistributionNotFound {
		return nil, ErrDistributionNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get distribution", err)
	}

	if record.Status == models.DistributionStatusSent {
		return nil, ErrDistributionAlreadySent
	}
	if record.Exhausted() {
		return nil, ErrAttemptsExhausted
	}

	contest, err := s.repo.GetByID(ctx, record.ContestID)
	if err == repository.ErrContestNotFound {
		return nil, ErrContestNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get contest", err)
	}

	winner := models.Winner{TelegramID: record.TelegramID, Position: record.Position}
	for _, w := range contest.Winners {
		if w.TelegramID == record.TelegramID && w.Position == record.Position {
			winner = w
			break
		}
	}

	if err := s.distributeOne(ctx, contest, winner); err != nil {
		return nil, err
	}
	return s.repo.GetDistributionByID(ctx, distributionID)
}

// prizeForPosition resolves the prize configured at a winner position.
// Second-chance positions beyond the configured list fall back to the last
// configured prize.
func prizeForPosition(contest *models.Contest, position int) (*models.Prize, error) {
	if position <= 0 || len(contest.Prizes) == 0 {
		return nil, fmt.Errorf("no prize configured for position %d", position)
	}
	if position > len(contest.Prizes) {
		return &contest.Prizes[len(contest.Prizes)-1], nil
	}
	return &contest.Prizes[position-1], nil
}

func (s *DistributionService) distributeOne(ctx context.Context, contest *models.Contest, winner models.Winner) error {
	prize, err := prizeForPosition(contest, winner.Position)
	if err != nil {
		return apperrors.NewValidationError("position", err.Error())
	}

	record, err := s.repo.GetDistribution(ctx, contest.ID, winner.TelegramID, winner.Position)
	if err == repository.ErrDistributionNotFound {
		record = &models.PrizeDistribution{
			ID:         uuid.New().String(),
			ContestID:  contest.ID,
			TelegramID: winner.TelegramID,
			Position:   winner.Position,
			PrizeKind:  prize.Kind,
			Status:     models.DistributionStatusPending,
			CreatedAt:  s.now(),
		}
	} else if err != nil {
		return apperrors.NewDatabaseError("get distribution", err)
	}

	// A sent record is immutable: re-entrant runs stop here.
	if record.Status == models.DistributionStatusSent {
		s.log.Debug().Str("distribution_id", record.ID).Msg("prize already sent, skipping")
		return nil
	}
	if record.Exhausted() {
		s.log.Warn().
			Str("distribution_id", record.ID).
			Int("attempts", record.Attempts).
			Msg("attempt budget exhausted, manual intervention required")
		return nil
	}

	now := s.now()
	record.Attempts++
	record.LastAttemptAt = &now
	record.Status = models.DistributionStatusProcessing
	record.PrizeKind = prize.Kind
	if err := s.repo.SaveDistribution(ctx, record); err != nil {
		return apperrors.NewDatabaseError("save distribution", err)
	}

	sendErr := s.dispatch(ctx, winner.TelegramID, prize)
	if sendErr != nil {
		record.Status = models.DistributionStatusFailed
		record.Error = sendErr.Error()
		if appErr, ok := apperrors.AsAppError(sendErr); ok && appErr.IsPrecondition() {
			// Configuration faults (missing or malformed wallet address)
			// must not burn the transient-failure budget; the record still
			// lands in failed so it cannot silently loop.
			record.Attempts--
		}
		if err := s.repo.SaveDistribution(ctx, record); err != nil {
			return apperrors.NewDatabaseError("save distribution", err)
		}
		return sendErr
	}

	sentAt := s.now()
	record.Status = models.DistributionStatusSent
	record.SentAt = &sentAt
	record.Error = ""
	if err := s.repo.SaveDistribution(ctx, record); err != nil {
		return apperrors.NewDatabaseError("save distribution", err)
	}

	s.markDelivered(ctx, contest, winner, prize)

	s.log.Info().
		Str("contest_id", contest.ID).
		Int64("telegram_id", winner.TelegramID).
		Int("position", winner.Position).
		Str("kind", string(prize.Kind)).
		Msg("prize sent")
	return nil
}

// dispatch routes one attempt by prize kind. The switch is exhaustive over
// the prize kinds; an unknown kind is an invariant failure.
func (s *DistributionService) dispatch(ctx context.Context, recipientID int64, prize *models.Prize) error {
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	switch prize.Kind {
	case models.PrizeKindPooledGift:
		return s.sendPooled(ctx, recipientID, prize)
	case models.PrizeKindOnDemandGift:
		if err := s.sender.SendGift(ctx, recipientID, prize.GiftID, giftMessage(prize)); err != nil {
			return apperrors.NewSendFailedError(recipientID, err)
		}
		return nil
	case models.PrizeKindChainTransfer:
		return s.sendChainTransfer(ctx, recipientID, prize)
	case models.PrizeKindCustom:
		// No automated delivery: sent means queued for manual fulfillment.
		return nil
	default:
		return apperrors.NewInvariantError(apperrors.ErrCodeValidation, fmt.Sprintf("unknown prize kind %q", prize.Kind))
	}
}

// sendPooled delivers from the shared inventory. A hold marked on the prize
// slot at contest activation is consumed on success; without one the engine
// tries to take one more unit, and with the pool depleted it falls back to
// on-demand sourcing through the same sender. The slot mark is the only
// evidence of a hold consulted here: global reservation counts may belong
// to other contests.
func (s *DistributionService) sendPooled(ctx context.Context, recipientID int64, prize *models.Prize) error {
	fromPool := prize.Reserved
	if !fromPool {
		reserved, err := s.pool.Reserve(ctx, prize.GiftID, 1)
		if err != nil {
			return err
		}
		fromPool = reserved
	}

	if !fromPool {
		// Pool depleted: on-demand sourcing, no reservation involved.
		s.log.Info().Str("gift_id", prize.GiftID).Msg("pool depleted, sourcing gift on demand")
		if err := s.sender.SendGift(ctx, recipientID, prize.GiftID, giftMessage(prize)); err != nil {
			return apperrors.NewSendFailedError(recipientID, err)
		}
		return nil
	}

	if err := s.sender.SendGift(ctx, recipientID, prize.GiftID, giftMessage(prize)); err != nil {
		// The reservation stays intact for the retry.
		return apperrors.NewSendFailedError(recipientID, err)
	}
	if ok, err := s.pool.Consume(ctx, prize.GiftID, 1); err != nil {
		return err
	} else if !ok {
		return apperrors.NewInvariantError(apperrors.ErrCodePoolInvariant, "consume after send found no reservation")
	}
	return nil
}

func (s *DistributionService) sendChainTransfer(ctx context.Context, recipientID int64, prize *models.Prize) error {
	address, err := s.wallets.GetAddress(ctx, recipientID)
	if err == walletrepo.ErrAddressNotFound {
		return ErrWalletMissing
	}
	if err != nil {
		return apperrors.NewDatabaseError("get wallet address", err)
	}
	if !s.chain.ValidateAddress(address) {
		return ErrWalletMalformed
	}

	if err := s.chain.Transfer(ctx, address, prize.AmountNano, prize.Memo); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeChainTransfer, apperrors.KindTransient, "chain transfer failed")
	}
	return nil
}

// markDelivered flips the winner's sent flag on the contest document and,
// when the send consumed an activation-time pool hold, clears the hold mark
// on the prize slot. Best effort: the distribution record is the source of
// truth.
func (s *DistributionService) markDelivered(ctx context.Context, contest *models.Contest, winner models.Winner, prize *models.Prize) {
	fresh, err := s.repo.GetByID(ctx, contest.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("contest_id", contest.ID).Msg("failed to reload contest for sent flag")
		return
	}
	changed := false
	for i := range fresh.Winners {
		if fresh.Winners[i].TelegramID == winner.TelegramID && fresh.Winners[i].Position == winner.Position && !fresh.Winners[i].Sent {
			fresh.Winners[i].Sent = true
			changed = true
		}
	}
	if prize.Kind == models.PrizeKindPooledGift && prize.Reserved {
		idx := winner.Position - 1
		if idx >= len(fresh.Prizes) {
			idx = len(fresh.Prizes) - 1
		}
		if idx >= 0 && fresh.Prizes[idx].Reserved {
			fresh.Prizes[idx].Reserved = false
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := s.repo.Update(ctx, fresh); err != nil {
		s.log.Warn().Err(err).Str("contest_id", contest.ID).Msg("failed to persist sent flag")
	}
}

func giftMessage(prize *models.Prize) string {
	if prize.Title != "" {
		return prize.Title
	}
	return "Congratulations! You won a prize 🎁"
}
