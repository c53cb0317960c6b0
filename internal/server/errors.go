package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	auditdomain "github.com/paychunk/paychunk/internal/audit/domain"
	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
	resourcedomain "github.com/paychunk/paychunk/internal/resource/domain"
	sessiondomain "github.com/paychunk/paychunk/internal/session/domain"
	walletdomain "github.com/paychunk/paychunk/internal/wallet/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, resourcedomain.ErrNotResourceOwner):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isPaymentRequiredError(err):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_funds",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "rate limited",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the log-friendly error type and code.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	_ = status
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, platformdomain.ErrInvalidAuthority),
		errors.Is(err, platformdomain.ErrInvalidCurrency),
		errors.Is(err, platformdomain.ErrFeeTooHigh),
		errors.Is(err, resourcedomain.ErrInvalidResourceID),
		errors.Is(err, resourcedomain.ErrInvalidContentHash),
		errors.Is(err, resourcedomain.ErrInvalidTitle),
		errors.Is(err, resourcedomain.ErrInvalidDescription),
		errors.Is(err, resourcedomain.ErrInvalidUnitCount),
		errors.Is(err, resourcedomain.ErrPriceTooLow),
		errors.Is(err, resourcedomain.ErrNoUpdateProvided),
		errors.Is(err, resourcedomain.ErrInvalidPageToken),
		errors.Is(err, sessiondomain.ErrInvalidConsumer),
		errors.Is(err, sessiondomain.ErrInvalidUnitsRequested),
		errors.Is(err, sessiondomain.ErrInvalidUnitIndex),
		errors.Is(err, sessiondomain.ErrInvalidUnitCount),
		errors.Is(err, sessiondomain.ErrSettlementTooOld),
		errors.Is(err, sessiondomain.ErrSettlementInFuture),
		errors.Is(err, sessiondomain.ErrInvalidPageToken),
		errors.Is(err, walletdomain.ErrInvalidAccount),
		errors.Is(err, walletdomain.ErrInvalidAmount),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return true
	default:
		return false
	}
}

// Conflicts are requests that were well formed but collide with the current
// lifecycle state of the session, delegation, or platform.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, platformdomain.ErrAlreadyInitialized),
		errors.Is(err, resourcedomain.ErrResourceExists),
		errors.Is(err, resourcedomain.ErrResourceInactive),
		errors.Is(err, sessiondomain.ErrSessionExpired),
		errors.Is(err, sessiondomain.ErrSessionInactive),
		errors.Is(err, sessiondomain.ErrOutOfSequenceUnit),
		errors.Is(err, sessiondomain.ErrPriceChanged),
		errors.Is(err, sessiondomain.ErrInsufficientApproval),
		errors.Is(err, sessiondomain.ErrSettlementExceedsApproval),
		errors.Is(err, walletdomain.ErrNoDelegation),
		errors.Is(err, walletdomain.ErrInsufficientDelegation):
		return true
	default:
		return false
	}
}

func isPaymentRequiredError(err error) bool {
	switch {
	case errors.Is(err, sessiondomain.ErrInsufficientFundsForApproval),
		errors.Is(err, walletdomain.ErrInsufficientBalance):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, platformdomain.ErrNotInitialized),
		errors.Is(err, resourcedomain.ErrResourceNotFound),
		errors.Is(err, sessiondomain.ErrSessionNotFound),
		errors.Is(err, walletdomain.ErrAccountNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
