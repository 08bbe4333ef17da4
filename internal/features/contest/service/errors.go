package service

import (
	apperrors "contest-engine-backend/internal/common/errors"
)

// Sentinel errors of the engine. All are matchable with errors.Is via the
// AppError code.
var (
	ErrContestNotFound             = apperrors.New(apperrors.ErrCodeContestNotFound, apperrors.KindPrecondition, "contest not found")
	ErrContestNotAcceptingActivity = apperrors.New(apperrors.ErrCodeContestNotActive, apperrors.KindPrecondition, "contest is not accepting activity")
	ErrInvalidTransition           = apperrors.New(apperrors.ErrCodeInvalidTransition, apperrors.KindPrecondition, "invalid contest status transition")
	ErrBoostAlreadyActive          = apperrors.New(apperrors.ErrCodeBoostAlreadyActive, apperrors.KindPrecondition, "an active boost already exists for this participant")
	ErrAlreadyOptedIn              = apperrors.New(apperrors.ErrCodeConflict, apperrors.KindPrecondition, "participant already opted into the second chance draw")
	ErrDistributionNotFound        = apperrors.New(apperrors.ErrCodeDistributionNotFound, apperrors.KindPrecondition, "distribution record not found")
	ErrDistributionAlreadySent     = apperrors.New(apperrors.ErrCodeConflict, apperrors.KindPrecondition, "distribution already sent")
	ErrAttemptsExhausted           = apperrors.New(apperrors.ErrCodeAttemptsExhausted, apperrors.KindInvariant, "distribution attempt budget exhausted")
	ErrWalletMissing               = apperrors.New(apperrors.ErrCodeWalletMissing, apperrors.KindPrecondition, "no wallet address on file for winner")
	ErrWalletMalformed             = apperrors.New(apperrors.ErrCodeWalletMalformed, apperrors.KindPrecondition, "wallet address on file is malformed")
)
