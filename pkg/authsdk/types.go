package authsdk

import (
	"time"

	"github.com/retrade/authmesh/pkg/jwtx"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	// Error is a stable machine readable code, e.g. "invalid_request".
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error.
	ErrorDescription string `json:"error_description,omitempty"`
}

// ============================================================================
// Account Types
// ============================================================================

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountResponse describes an account.
type AccountResponse struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Roles            []string  `json:"roles"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

// RenameRequest changes the caller's username.
type RenameRequest struct {
	Username string `json:"username"`
}

// ChangePasswordRequest replaces the caller's password. Every session of the
// account is revoked on success.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ============================================================================
// Session Types
// ============================================================================

// LoginRequest authenticates with a username and password.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest carries a REFRESH token. It may be omitted when the token
// travels in its cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TwoFactorCompleteRequest carries the TOTP code that completes a pending
// login.
type TwoFactorCompleteRequest struct {
	Code string `json:"code"`
}

// TokenSetResponse documents the wire form of tokens.TokenSet.
type TokenSetResponse struct {
	Tokens            map[string]string `json:"tokens"`
	Roles             []string          `json:"roles"`
	TwoFactorRequired bool              `json:"two_factor_required"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	Subject   string    `json:"sub"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	SessionID string    `json:"sid"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ============================================================================
// MFA Types
// ============================================================================

// TOTPEnrollResponse carries a freshly generated TOTP secret.
type TOTPEnrollResponse struct {
	// Secret is the base32 encoded TOTP secret for manual entry
	Secret string `json:"secret"`

	// URL is the otpauth:// URL for QR code generation
	URL string `json:"url"`

	// Issuer is the issuer name shown in authenticator apps
	Issuer string `json:"issuer"`

	// Account is the account name shown in authenticator apps
	Account string `json:"account"`
}

// TOTPCodeRequest carries a TOTP code to enable or disable TOTP.
type TOTPCodeRequest struct {
	Code string `json:"code"`
}

// ============================================================================
// Key Types
// ============================================================================

// SigningKeyInfo describes a signing key without private material.
type SigningKeyInfo struct {
	Kid       string     `json:"kid"`
	Scope     string     `json:"scope"`
	Algorithm string     `json:"algorithm"`
	Current   bool       `json:"current"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RotateKeyResponse is the result of a key rotation.
type RotateKeyResponse struct {
	NewKey      SigningKeyInfo   `json:"new_key"`
	RetiredKeys []SigningKeyInfo `json:"retired_keys,omitempty"`
}

// JWKSResponse is the JSON Web Key Set published by the auth service.
type JWKSResponse = jwtx.JWKS

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists the dependency checks of a readiness probe.
type HealthChecks struct {
	Database   string `json:"database"`
	Signer     string `json:"signer"`
	Revocation string `json:"revocation,omitempty"`
}
