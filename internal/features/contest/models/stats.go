package models

import (
	"errors"
	"time"
)

var ErrUnknownActionKind = errors.New("unknown action kind")

// ActionKind is a raw engagement signal delivered to the scoring engine.
type ActionKind string

const (
	ActionReaction ActionKind = "reaction"
	ActionComment  ActionKind = "comment"
	// ActionReply is a comment authored in response to another comment.
	ActionReply ActionKind = "reply"
)

// BasePoints returns the unboosted point value of an action.
func (k ActionKind) BasePoints() (int64, error) {
	switch k {
	case ActionReaction:
		return 1, nil
	case ActionComment:
		return 3, nil
	case ActionReply:
		return 2, nil
	}
	return 0, ErrUnknownActionKind
}

// ParticipantStats is the per-(participant, contest) accrual record.
// Points is the sum of multiplier-weighted deltas ever applied; mutations
// go through atomic increments only.
type ParticipantStats struct {
	ContestID    string    `json:"contest_id"`
	TelegramID   int64     `json:"telegram_id"`
	Points       int64     `json:"points"`
	Reactions    int64     `json:"reactions"`
	Comments     int64     `json:"comments"`
	Replies      int64     `json:"replies"`
	Multiplier   float64   `json:"multiplier"`
	LastActivity time.Time `json:"last_activity"`

	// BoostExpiresAt mirrors the active boost's expiry so the scoring path
	// can evaluate liveness without a join; nil means no expiry.
	BoostExpiresAt *time.Time `json:"boost_expires_at,omitempty"`
}

// EffectiveMultiplier evaluates the cached multiplier at read time. It
// reports expired=true when a bounded boost lapsed and the caller should
// trigger the idempotent deactivation side effect.
func (s *ParticipantStats) EffectiveMultiplier(now time.Time) (mult float64, expired bool) {
	if s.Multiplier <= 1 {
		return 1.0, false
	}
	if s.BoostExpiresAt != nil && !s.BoostExpiresAt.After(now) {
		return 1.0, true
	}
	return s.Multiplier, false
}

// BoostType identifies a purchasable point multiplier.
type BoostType string

const (
	// BoostX2For24h doubles points for 24 hours after activation.
	BoostX2For24h BoostType = "x2_24h"
	// BoostX15Forever multiplies points by 1.5 until the contest ends.
	BoostX15Forever BoostType = "x1.5_forever"
)

var ErrUnknownBoostType = errors.New("unknown boost type")

// Multiplier returns the point multiplier for the boost type.
func (t BoostType) Multiplier() (float64, error) {
	switch t {
	case BoostX2For24h:
		return 2.0, nil
	case BoostX15Forever:
		return 1.5, nil
	}
	return 0, ErrUnknownBoostType
}

// Lifetime returns the boost's own expiry window; zero means no independent
// expiry (the boost is bounded by the contest window instead).
func (t BoostType) Lifetime() time.Duration {
	if t == BoostX2For24h {
		return 24 * time.Hour
	}
	return 0
}

// Boost is one purchased multiplier for a (participant, contest) pair.
// At most one active boost may exist per pair at a time.
type Boost struct {
	ContestID   string     `json:"contest_id"`
	TelegramID  int64      `json:"telegram_id"`
	Type        BoostType  `json:"type"`
	Multiplier  float64    `json:"multiplier"`
	PriceUnits  int64      `json:"price_units"`
	ActivatedAt time.Time  `json:"activated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// ActiveAt evaluates the query-time predicate for boost liveness:
// is_active AND (no expiry OR expiry > now). Expired boosts are lazily
// deactivated by the caller on first read past expiry.
func (b *Boost) ActiveAt(now time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.ExpiresAt == nil {
		return true
	}
	return b.ExpiresAt.After(now)
}
