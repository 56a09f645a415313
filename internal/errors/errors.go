// Package errors defines the stable, machine-readable error envelope the
// license server returns to API callers. Responses never leak internal
// paths, key material, or stack traces.
package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// Error codes returned to API callers.
const (
	CodeAppMismatch       = "APP_MISMATCH"
	CodeInvalidKey        = "INVALID_KEY"
	CodeInactive          = "INACTIVE"
	CodeExpired           = "EXPIRED"
	CodeBadMachineID      = "BAD_MACHINE_ID"
	CodeSeatLimitExceeded = "SEAT_LIMIT_EXCEEDED"
	CodeAdminUnauthorized = "ADMIN_UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_SERVER_ERROR"
)

// ErrResponse implements the render.Renderer interface for API errors
type ErrResponse struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	AppCode        string `json:"code,omitempty"`
	ErrorText      string `json:"error,omitempty"`
}

// Error implements the error interface
func (e *ErrResponse) Error() string {
	return e.ErrorText
}

// Render implements the render.Renderer interface
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// Predefined error responses for the activation and admin surfaces.
var (
	ErrAppMismatch = &ErrResponse{
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Application mismatch",
		AppCode:        CodeAppMismatch,
		ErrorText:      "The request names a different application than this server serves",
	}

	ErrInvalidKey = &ErrResponse{
		HTTPStatusCode: http.StatusForbidden,
		StatusText:     "Invalid license key",
		AppCode:        CodeInvalidKey,
		ErrorText:      "The provided license key is not recognized",
	}

	ErrInactive = &ErrResponse{
		HTTPStatusCode: http.StatusForbidden,
		StatusText:     "License inactive",
		AppCode:        CodeInactive,
		ErrorText:      "This license key has been deactivated",
	}

	ErrExpired = &ErrResponse{
		HTTPStatusCode: http.StatusPaymentRequired,
		StatusText:     "License expired",
		AppCode:        CodeExpired,
		ErrorText:      "This license has expired. Please renew to continue",
	}

	ErrBadMachineID = &ErrResponse{
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid machine identifier",
		AppCode:        CodeBadMachineID,
		ErrorText:      "The supplied machine identifier could not be normalized",
	}

	ErrSeatLimitExceeded = &ErrResponse{
		HTTPStatusCode: http.StatusConflict,
		StatusText:     "Seat limit reached",
		AppCode:        CodeSeatLimitExceeded,
		ErrorText:      "All seats for this license are in use. Free a seat or contact support",
	}

	ErrAdminUnauthorized = &ErrResponse{
		HTTPStatusCode: http.StatusUnauthorized,
		StatusText:     "Unauthorized",
		AppCode:        CodeAdminUnauthorized,
		ErrorText:      "A valid admin credential is required",
	}

	ErrKeyNotFound = &ErrResponse{
		HTTPStatusCode: http.StatusNotFound,
		StatusText:     "Not found",
		AppCode:        CodeNotFound,
		ErrorText:      "The specified license key was not found",
	}

	ErrInternal = &ErrResponse{
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Internal server error",
		AppCode:        CodeInternal,
		ErrorText:      "An unexpected error occurred. Please try again later",
	}
)

// ErrInvalidRequest creates a bad request error with a caller-safe message
func ErrInvalidRequest(message string) *ErrResponse {
	return &ErrResponse{
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request",
		AppCode:        CodeInvalidRequest,
		ErrorText:      message,
	}
}

// New creates a custom error response
func New(status int, code, message string) *ErrResponse {
	return &ErrResponse{
		HTTPStatusCode: status,
		StatusText:     http.StatusText(status),
		AppCode:        code,
		ErrorText:      message,
	}
}
