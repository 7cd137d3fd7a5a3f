package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	splitdomain "github.com/mesaops/comanda/internal/billsplit/domain"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
	"github.com/mesaops/comanda/internal/locks"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	paymentdomain "github.com/mesaops/comanda/internal/payment/domain"
	tabledomain "github.com/mesaops/comanda/internal/table/domain"
	"gorm.io/gorm"
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

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware maps domain errors collected on the context to an
// HTTP status and a stable JSON error body.
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

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: "request", Code: err.Error(), Message: err.Error()},
			},
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isStateError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_state",
			Message: err.Error(),
		}
	case errors.Is(err, locks.ErrLockUnavailable):
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
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidPrice),
		errors.Is(err, catalogdomain.ErrInvalidCategory),
		errors.Is(err, catalogdomain.ErrInvalidBounds),
		errors.Is(err, catalogdomain.ErrOptionNotApplicable),
		errors.Is(err, tabledomain.ErrInvalidCode),
		errors.Is(err, tabledomain.ErrInvalidCapacity),
		errors.Is(err, orderdomain.ErrMissingTable),
		errors.Is(err, orderdomain.ErrInvalidQuantity),
		errors.Is(err, orderdomain.ErrOptionSelection),
		errors.Is(err, splitdomain.ErrInvalidStrategy),
		errors.Is(err, splitdomain.ErrInvalidParticipants),
		errors.Is(err, splitdomain.ErrProposalRequired),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidMethod):
		return true
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, tabledomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrLineItemNotFound),
		errors.Is(err, splitdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, orderdomain.ErrConcurrentModification),
		errors.Is(err, catalogdomain.ErrDuplicateName),
		errors.Is(err, tabledomain.ErrDuplicateCode),
		errors.Is(err, tabledomain.ErrAlreadyOccupied),
		errors.Is(err, splitdomain.ErrConflict):
		return true
	}
	return false
}

// isStateError covers operations that are well-formed but not allowed in the
// aggregate's current state.
func isStateError(err error) bool {
	switch {
	case errors.Is(err, orderdomain.ErrInvalidState),
		errors.Is(err, orderdomain.ErrInvalidTransition),
		errors.Is(err, orderdomain.ErrPricingInvariant),
		errors.Is(err, tabledomain.ErrNotOccupied),
		errors.Is(err, splitdomain.ErrOrderNotSplittable),
		errors.Is(err, splitdomain.ErrSplitReconciliation),
		errors.Is(err, splitdomain.ErrExclusiveConsumption),
		errors.Is(err, paymentdomain.ErrOrderNotPayable),
		errors.Is(err, paymentdomain.ErrOverpayment),
		errors.Is(err, paymentdomain.ErrTipTooLarge),
		errors.Is(err, paymentdomain.ErrNoActiveSplit),
		errors.Is(err, paymentdomain.ErrShareExceeded),
		errors.Is(err, paymentdomain.ErrInvalidTransition):
		return true
	}
	return false
}

// classifyErrorForLog tags request-log lines without leaking internals.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case asValidationErrors(err) != nil, isValidationError(err):
		return "validation_error", "invalid_request"
	case isNotFoundError(err):
		return "not_found", "not_found"
	case isConflictError(err):
		return "conflict", err.Error()
	case isStateError(err):
		return "invalid_state", err.Error()
	default:
		return "internal_error", "internal_error"
	}
}
