package service

import "time"

const (
	// Scheduler
	DefaultTickInterval = 60 * time.Second
	LockTimeout         = 30 * time.Second

	// Delayed bonus draw after primary completion.
	SecondChanceDelay      = time.Hour
	SecondChanceWinnersCap = 3

	// Distribution pacing between consecutive sends in one batch.
	DefaultSendDelay   = time.Second
	DefaultSendTimeout = 15 * time.Second
)
