package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a specific failure condition.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeConflict     ErrorCode = "CONFLICT"

	// Contest lifecycle
	ErrCodeContestNotFound    ErrorCode = "CONTEST_NOT_FOUND"
	ErrCodeContestNotActive   ErrorCode = "CONTEST_NOT_ACTIVE"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeInvalidWinnersList ErrorCode = "INVALID_WINNERS_CONFIGURATION"

	// Scoring
	ErrCodeBoostAlreadyActive ErrorCode = "BOOST_ALREADY_ACTIVE"
	ErrCodeUnknownBoostType   ErrorCode = "UNKNOWN_BOOST_TYPE"

	// Pool ledger
	ErrCodePoolEntryNotFound ErrorCode = "POOL_ENTRY_NOT_FOUND"
	ErrCodePoolInvariant     ErrorCode = "POOL_INVARIANT_VIOLATION"

	// Distribution
	ErrCodeDistributionNotFound ErrorCode = "DISTRIBUTION_NOT_FOUND"
	ErrCodeAttemptsExhausted    ErrorCode = "DISTRIBUTION_ATTEMPTS_EXHAUSTED"
	ErrCodeWalletMissing        ErrorCode = "WALLET_ADDRESS_MISSING"
	ErrCodeWalletMalformed      ErrorCode = "WALLET_ADDRESS_MALFORMED"

	// External boundaries
	ErrCodeSendFailed    ErrorCode = "PRIZE_SEND_FAILED"
	ErrCodeChainTransfer ErrorCode = "CHAIN_TRANSFER_FAILED"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

// Kind classifies an error for retry policy purposes.
type Kind string

const (
	// KindPrecondition: surfaced to the caller, no state was mutated,
	// never retried automatically.
	KindPrecondition Kind = "precondition"
	// KindTransient: captured on the owning record and retried up to the
	// attempt budget.
	KindTransient Kind = "transient"
	// KindInvariant: rejected before mutation, never clamped.
	KindInvariant Kind = "invariant"
	// KindInternal: infrastructure failures.
	KindInternal Kind = "internal"
)

// AppError is the typed application error carried across service boundaries.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Kind      Kind                   `json:"kind"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match two AppErrors by code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func (e *AppError) IsPrecondition() bool {
	return e.Kind == KindPrecondition
}

func (e *AppError) IsTransient() bool {
	return e.Kind == KindTransient
}

func (e *AppError) IsInvariant() bool {
	return e.Kind == KindInvariant
}

// WithDetail attaches structured detail to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new application error.
func New(code ErrorCode, kind Kind, message string) *AppError {
	return &AppError{
		Code:      code,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error.
func Wrap(err error, code ErrorCode, kind Kind, message string) *AppError {
	appErr := New(code, kind, message)
	appErr.Cause = err
	return appErr
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code ErrorCode, kind Kind, format string, args ...interface{}) *AppError {
	return Wrap(err, code, kind, fmt.Sprintf(format, args...))
}

// Constructors for the recurring cases.

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, KindPrecondition, fmt.Sprintf("validation failed for %q: %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, KindPrecondition, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewContestNotActiveError(contestID string) *AppError {
	return New(ErrCodeContestNotActive, KindPrecondition, "contest is not accepting activity").
		WithDetail("contest_id", contestID)
}

func NewInvariantError(code ErrorCode, message string) *AppError {
	return New(code, KindInvariant, message)
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, KindInternal, fmt.Sprintf("store operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewSendFailedError(recipientID int64, err error) *AppError {
	return Wrap(err, ErrCodeSendFailed, KindTransient, "prize send failed").
		WithDetail("recipient_id", recipientID)
}

// AsAppError extracts an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
