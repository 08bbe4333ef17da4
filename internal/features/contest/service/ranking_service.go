package service

import (
	"context"
	"sort"

	apperrors "contest-engine-backend/internal/common/errors"
	"contest-engine-backend/internal/features/contest/models"
	"contest-engine-backend/internal/features/contest/repository"
)

// RankingService produces the deterministic total order over a contest's
// participants. Ranks are recomputed live on every read; no cached rank is
// trusted while a contest is running.
type RankingService struct {
	repo repository.ContestRepository
}

func NewRankingService(repo repository.ContestRepository) *RankingService {
	return &RankingService{repo: repo}
}

// Position is the live rank of one participant.
type Position struct {
	Rank              int   `json:"rank"`
	TotalParticipants int   `json:"total_participants"`
	Points            int64 `json:"points"`
}

// ranksAhead orders a before b: descending points, then ascending last
// activity, then telegram id for a stable total order.
func ranksAhead(a, b *models.ParticipantStats) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if !a.LastActivity.Equal(b.LastActivity) {
		return a.LastActivity.Before(b.LastActivity)
	}
	return a.TelegramID < b.TelegramID
}

func (s *RankingService) ordered(ctx context.Context, contestID string) ([]models.ParticipantStats, error) {
	stats, err := s.repo.ListStats(ctx, contestID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list stats", err)
	}
	sort.Slice(stats, func(i, j int) bool {
		return ranksAhead(&stats[i], &stats[j])
	})
	return stats, nil
}

// Rank returns the ordered leaderboard slice [offset, offset+limit).
func (s *RankingService) Rank(ctx context.Context, contestID string, limit, offset int) ([]models.ParticipantStats, error) {
	if limit <= 0 {
		return nil, apperrors.NewValidationError("limit", "must be positive")
	}
	if offset < 0 {
		return nil, apperrors.NewValidationError("offset", "cannot be negative")
	}

	stats, err := s.ordered(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if offset >= len(stats) {
		return []models.ParticipantStats{}, nil
	}
	end := offset + limit
	if end > len(stats) {
		end = len(stats)
	}
	return stats[offset:end], nil
}

// PositionOf computes the participant's live rank as the count of
// participants strictly ahead by the ordering, plus one.
func (s *RankingService) PositionOf(ctx context.Context, contestID string, telegramID int64) (*Position, error) {
	stats, err := s.repo.ListStats(ctx, contestID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list stats", err)
	}

	var own *models.ParticipantStats
	for i := range stats {
		if stats[i].TelegramID == telegramID {
			own = &stats[i]
			break
		}
	}
	if own == nil {
		return nil, apperrors.NewNotFoundError("participant", telegramID)
	}

	rank := 1
	for i := range stats {
		if stats[i].TelegramID == telegramID {
			continue
		}
		if ranksAhead(&stats[i], own) {
			rank++
		}
	}

	return &Position{Rank: rank, TotalParticipants: len(stats), Points: own.Points}, nil
}
