package models

import (
	"fmt"
	"time"
)

// MaxDistributionAttempts bounds retries per (contest, winner, position).
const MaxDistributionAttempts = 3

// DistributionStatus is the state of one prize delivery record.
type DistributionStatus string

const (
	DistributionStatusPending    DistributionStatus = "pending"
	DistributionStatusProcessing DistributionStatus = "processing"
	DistributionStatusSent       DistributionStatus = "sent"
	DistributionStatusFailed     DistributionStatus = "failed"
)

// PrizeDistribution tracks one bounded-retry delivery of a resolved prize.
// The (contest, winner, position) composite key is the idempotency key:
// re-entrant scheduler runs look it up before any mutation, so at-most-once
// semantics hold without global locks. Once Status is sent the record is
// immutable.
type PrizeDistribution struct {
	ID            string             `json:"id"`
	ContestID     string             `json:"contest_id"`
	TelegramID    int64              `json:"telegram_id"`
	Position      int                `json:"position"`
	PrizeKind     PrizeKind          `json:"prize_kind"`
	Status        DistributionStatus `json:"status"`
	Attempts      int                `json:"attempts"`
	LastAttemptAt *time.Time         `json:"last_attempt_at,omitempty"`
	SentAt        *time.Time         `json:"sent_at,omitempty"`
	Error         string             `json:"error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Key returns the composite idempotency key for the record.
func (d *PrizeDistribution) Key() string {
	return DistributionKey(d.ContestID, d.TelegramID, d.Position)
}

// DistributionKey builds the (contest, winner, position) composite key.
func DistributionKey(contestID string, telegramID int64, position int) string {
	return fmt.Sprintf("%s:%d:%d", contestID, telegramID, position)
}

// Exhausted reports whether the attempt budget is spent.
func (d *PrizeDistribution) Exhausted() bool {
	return d.Attempts >= MaxDistributionAttempts
}

// SecondChanceEntry is an opt-in record for the delayed bonus draw among
// non-winners. Unique per (participant, contest).
type SecondChanceEntry struct {
	ContestID  string    `json:"contest_id"`
	TelegramID int64     `json:"telegram_id"`
	Proof      string    `json:"proof"`
	IsWinner   bool      `json:"is_winner"`
	CreatedAt  time.Time `json:"created_at"`
}
