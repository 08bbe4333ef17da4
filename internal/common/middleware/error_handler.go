package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"contest-engine-backend/internal/common/errors"
	"contest-engine-backend/internal/common/logger"
)

// RequestID propagates or generates an X-Request-ID for every request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ErrorHandler recovers panics into a structured error response.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, errors.KindInternal, "Internal server error").
			WithDetail("panic", fmt.Sprintf("%v", recovered))
		RespondError(c, appErr)
	})
}

// ErrorResponse is the JSON envelope for failed requests.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
}

// RespondError maps an error to an HTTP status and writes the envelope.
// Unrecognized errors become opaque 500s.
func RespondError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, errors.KindInternal, "unexpected error")
	}

	status := httpStatus(appErr)
	if status >= http.StatusInternalServerError {
		logger.Error().
			Err(appErr).
			Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

func httpStatus(appErr *errors.AppError) int {
	switch appErr.Code {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeContestNotFound, errors.ErrCodeDistributionNotFound, errors.ErrCodePoolEntryNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeConflict, errors.ErrCodeBoostAlreadyActive, errors.ErrCodeInvalidTransition, errors.ErrCodeAttemptsExhausted:
		return http.StatusConflict
	case errors.ErrCodeContestNotActive:
		return http.StatusGone
	case errors.ErrCodeWalletMissing, errors.ErrCodeWalletMalformed, errors.ErrCodeUnknownBoostType, errors.ErrCodeInvalidWinnersList:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeSendFailed, errors.ErrCodeChainTransfer:
		return http.StatusBadGateway
	case errors.ErrCodePoolInvariant:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
