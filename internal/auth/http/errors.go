package http

import (
	"errors"
	"net/http"

	"github.com/retrade/authmesh/internal/auth/service"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/slogx"
	"github.com/retrade/authmesh/pkg/tokens"
)

var (
	errUsernameTaken = httpx.NewAPIError(http.StatusConflict, "username_taken", "The username is already taken.")
	errInvalidName   = httpx.NewAPIError(http.StatusBadRequest, "invalid_username",
		"Usernames are 3 to 32 letters, digits, dots, dashes or underscores.")
	errWeakPassword = httpx.NewAPIError(http.StatusBadRequest, "weak_password", "Passwords need at least 8 characters.")

	errMFAAlreadyEnabled = httpx.NewAPIError(http.StatusConflict, "mfa_already_enabled", "TOTP is already enabled.")
	errMFANotEnabled     = httpx.NewAPIError(http.StatusBadRequest, "mfa_not_enabled", "TOTP is not enabled.")
	errMFANotEnrolled    = httpx.NewAPIError(http.StatusBadRequest, "mfa_not_enrolled", "Enroll in TOTP first.")

	errRotationUnsupported = httpx.NewAPIError(http.StatusNotImplemented, "not_implemented",
		"Shared-secret keys are rotated through configuration.")
)

// writeError maps a service or token error onto its reply. Every token
// failure collapses to the uniform 401; a revocation store outage is a 503.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrUsernameTaken):
		errUsernameTaken.WriteError(w)
	case errors.Is(err, service.ErrInvalidUsername):
		errInvalidName.WriteError(w)
	case errors.Is(err, service.ErrWeakPassword):
		errWeakPassword.WriteError(w)
	case errors.Is(err, service.ErrAccountNotFound):
		httpx.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrInvalidTOTPCode), errors.Is(err, tokens.ErrInvalidProof):
		httpx.ErrInvalidCode.WriteError(w)
	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		errMFAAlreadyEnabled.WriteError(w)
	case errors.Is(err, service.ErrMFANotEnabled):
		errMFANotEnabled.WriteError(w)
	case errors.Is(err, service.ErrMFANotEnrolled):
		errMFANotEnrolled.WriteError(w)
	case errors.Is(err, service.ErrRotationUnsupported):
		errRotationUnsupported.WriteError(w)
	case errors.Is(err, jwtx.ErrRevocationUnavailable):
		slogx.FromContext(r.Context()).Error("revocation store unavailable", "err", err)
		httpx.ErrServiceUnavailable.WriteError(w)
	case jwtx.KindOf(err) != "":
		slogx.FromContext(r.Context()).Warn("token rejected", "error_kind", jwtx.KindOf(err))
		httpx.WriteUnauthorized(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.ErrServerError.WriteError(w)
	}
}
