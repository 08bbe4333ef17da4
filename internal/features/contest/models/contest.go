package models

import (
	"errors"
	"time"
)

var (
	ErrContestEnded          = errors.New("contest has ended")
	ErrInvalidWinnersCount   = errors.New("winners count must be between 1 and 100")
	ErrPrizeCountMismatch    = errors.New("prizes must have exactly one entry per winner position")
	ErrInvalidDuration       = errors.New("duration must be one of 24h, 48h, 72h or 7d")
	ErrInvalidTransition     = errors.New("invalid contest status transition")
	ErrAlreadyOptedIn        = errors.New("participant already opted into the second chance draw")
	ErrUnknownActivityType   = errors.New("unknown contest activity type")
	ErrContestNotCancellable = errors.New("only active contests can be cancelled")
)

// ContestStatus represents the lifecycle state of a contest.
type ContestStatus string

const (
	ContestStatusDraft          ContestStatus = "draft"
	ContestStatusPendingPayment ContestStatus = "pending_payment"
	ContestStatusActive         ContestStatus = "active"
	ContestStatusCompleting     ContestStatus = "completing"
	ContestStatusCompleted      ContestStatus = "completed"
	ContestStatusCancelled      ContestStatus = "cancelled"
)

// ActivityType gates which engagement kinds earn points in a contest.
type ActivityType string

const (
	ActivityTypeReactions ActivityType = "reactions"
	ActivityTypeComments  ActivityType = "comments"
	ActivityTypeAll       ActivityType = "all"
)

func (a ActivityType) IsValid() bool {
	switch a {
	case ActivityTypeReactions, ActivityTypeComments, ActivityTypeAll:
		return true
	}
	return false
}

// ContestDuration is the fixed set of allowed contest windows.
type ContestDuration time.Duration

const (
	Duration24h ContestDuration = ContestDuration(24 * time.Hour)
	Duration48h ContestDuration = ContestDuration(48 * time.Hour)
	Duration72h ContestDuration = ContestDuration(72 * time.Hour)
	Duration7d  ContestDuration = ContestDuration(7 * 24 * time.Hour)
)

func (d ContestDuration) IsValid() bool {
	switch d {
	case Duration24h, Duration48h, Duration72h, Duration7d:
		return true
	}
	return false
}

// Winner is one resolved winner slot on a completed contest.
type Winner struct {
	TelegramID int64 `json:"telegram_id"`
	Points     int64 `json:"points"`
	Position   int   `json:"position"`
	Sent       bool  `json:"sent"`
	// SecondChance marks winners appended by the delayed bonus draw.
	SecondChance bool `json:"second_chance,omitempty"`
}

// Contest represents a time-boxed engagement competition tied to one channel.
type Contest struct {
	ID           string          `json:"id"`
	ChannelID    int64           `json:"channel_id"`
	Status       ContestStatus   `json:"status"`
	ActivityType ActivityType    `json:"activity_type"`
	Duration     ContestDuration `json:"duration"`
	WinnersCount int             `json:"winners_count"`
	StartsAt     *time.Time      `json:"starts_at,omitempty"`
	EndsAt       *time.Time      `json:"ends_at,omitempty"`
	Prizes       []Prize         `json:"prizes"`
	Winners      []Winner        `json:"winners,omitempty"`

	// Contest-level aggregates, maintained by the scoring engine.
	TotalReactions int64 `json:"total_reactions"`
	TotalComments  int64 `json:"total_comments"`
	Participants   int64 `json:"participants"`

	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	SecondChanceDrawnAt *time.Time `json:"second_chance_drawn_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// transitions lists the allowed one-directional status moves.
var transitions = map[ContestStatus][]ContestStatus{
	ContestStatusDraft:          {ContestStatusPendingPayment},
	ContestStatusPendingPayment: {ContestStatusActive},
	ContestStatusActive:         {ContestStatusCompleting, ContestStatusCancelled},
	ContestStatusCompleting:     {ContestStatusCompleted},
}

// CanTransitionTo reports whether moving to next is a legal lifecycle step.
func (c *Contest) CanTransitionTo(next ContestStatus) bool {
	for _, allowed := range transitions[c.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HasEnded reports whether the contest window has elapsed.
func (c *Contest) HasEnded(now time.Time) bool {
	return c.EndsAt != nil && now.After(*c.EndsAt)
}

// AcceptsActivity re-checks, at call time, that the contest can still award points.
func (c *Contest) AcceptsActivity(now time.Time) bool {
	return c.Status == ContestStatusActive && !c.HasEnded(now)
}

// CountsAction reports whether the configured activity type admits the action.
// Replies count as comments for gating purposes.
func (c *Contest) CountsAction(kind ActionKind) bool {
	switch c.ActivityType {
	case ActivityTypeAll:
		return true
	case ActivityTypeReactions:
		return kind == ActionReaction
	case ActivityTypeComments:
		return kind == ActionComment || kind == ActionReply
	}
	return false
}

// IsWinner reports whether the participant already holds a winner slot.
func (c *Contest) IsWinner(telegramID int64) bool {
	for _, w := range c.Winners {
		if w.TelegramID == telegramID {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a contest configuration.
func (c *Contest) Validate() error {
	if c.WinnersCount < 1 || c.WinnersCount > 100 {
		return ErrInvalidWinnersCount
	}
	if len(c.Prizes) != c.WinnersCount {
		return ErrPrizeCountMismatch
	}
	if !c.Duration.IsValid() {
		return ErrInvalidDuration
	}
	if !c.ActivityType.IsValid() {
		return ErrUnknownActivityType
	}
	for i := range c.Prizes {
		if err := c.Prizes[i].Validate(); err != nil {
			return err
		}
	}
	if c.StartsAt != nil && c.EndsAt != nil && !c.StartsAt.Before(*c.EndsAt) {
		return errors.New("starts_at must precede ends_at")
	}
	return nil
}

// ContestCreate carries the caller-supplied configuration for a new contest.
type ContestCreate struct {
	ChannelID    int64           `json:"channel_id" binding:"required"`
	ActivityType ActivityType    `json:"activity_type" binding:"required"`
	Duration     ContestDuration `json:"duration" binding:"required"`
	WinnersCount int             `json:"winners_count" binding:"required,min=1,max=100"`
	Prizes       []Prize         `json:"prizes" binding:"required"`
}
