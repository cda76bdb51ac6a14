package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	distributiondomain "github.com/xim/effekt-backend/internal/distribution/domain"
	donationdomain "github.com/xim/effekt-backend/internal/donation/domain"
	donordomain "github.com/xim/effekt-backend/internal/donor/domain"
	paymentdomain "github.com/xim/effekt-backend/internal/payment/domain"
)

// APIError is the JSON error envelope every handler returns on failure.
type APIError struct {
	Status  int          `json:"-"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Code }

var (
	ErrNotFound     = &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrUnauthorized = &APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "authentication required"}
	ErrRateLimited  = &APIError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}
)

func invalidRequestError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "request body could not be parsed"}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "validation_failed",
		Message: "request validation failed",
		Fields:  []FieldError{{Field: field, Code: code, Message: message}},
	}
}

// AbortWithError translates domain errors to HTTP statuses. Unknown errors
// become opaque 500s so internals never leak to callers.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal server error"

	switch {
	case errors.Is(err, donordomain.ErrNotFound),
		errors.Is(err, donationdomain.ErrNotFound),
		errors.Is(err, distributiondomain.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, donationdomain.ErrAlreadyConfirmed):
		status, code, message = http.StatusConflict, err.Error(), "donation is already confirmed"
	case errors.Is(err, donordomain.ErrInvalidName),
		errors.Is(err, donordomain.ErrInvalidEmail),
		errors.Is(err, donationdomain.ErrInvalidSum),
		errors.Is(err, donationdomain.ErrInvalidMethod),
		errors.Is(err, donationdomain.ErrKIDNotFound),
		errors.Is(err, distributiondomain.ErrEmptySplit),
		errors.Is(err, distributiondomain.ErrInvalidOrganization),
		errors.Is(err, distributiondomain.ErrDuplicateOrganization),
		errors.Is(err, distributiondomain.ErrInvalidShare),
		errors.Is(err, distributiondomain.ErrSharesNotHundred):
		status, code, message = http.StatusBadRequest, err.Error(), "request validation failed"
	case errors.Is(err, paymentdomain.ErrDownstreamUnavailable):
		status, code, message = http.StatusBadGateway, err.Error(), "payment provider unavailable"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": &APIError{Status: status, Code: code, Message: message}})
}
