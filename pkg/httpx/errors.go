package httpx

import (
	"fmt"
	"net/http"
)

// APIError is the JSON error body of every non-2xx reply other than the
// uniform 401. It is both written by handlers and decoded by clients.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is a stable machine readable code, e.g. "invalid_request".
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e as the response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	WriteJSON(w, e.StatusCode, e)
}

// WithDescription returns a copy of e with a different description.
func (e *APIError) WithDescription(desc string) *APIError {
	c := *e
	c.Description = desc
	return &c
}

// NewAPIError creates an APIError.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        "invalid_request",
		Description: "The request is missing a required parameter or is malformed.",
	}
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        "invalid_credentials",
		Description: "Username or password is incorrect.",
	}
	ErrInvalidCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        "invalid_code",
		Description: "The verification code is incorrect.",
	}
	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        "forbidden",
		Description: "The caller lacks the required role.",
	}
	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        "not_found",
		Description: "The resource does not exist.",
	}
	ErrConflict = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        "conflict",
		Description: "The resource already exists.",
	}
	ErrRateLimited = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        "rate_limit_exceeded",
		Description: "Too many requests. Try again later.",
	}
	ErrServiceUnavailable = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        "temporarily_unavailable",
		Description: "A dependency is unavailable. Try again later.",
	}
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        "server_error",
		Description: "The server encountered an unexpected condition.",
	}
)
