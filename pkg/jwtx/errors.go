package jwtx

import "errors"

// ErrorKind classifies why a token was refused. It exists for logs and
// metrics only; transports collapse every kind into one unauthorized reply.
type ErrorKind string

const (
	ErrorKindMalformed                 ErrorKind = "MALFORMED_TOKEN"
	ErrorKindSignatureInvalid          ErrorKind = "SIGNATURE_INVALID"
	ErrorKindExpired                   ErrorKind = "EXPIRED"
	ErrorKindInvalidTokenKind          ErrorKind = "INVALID_TOKEN_KIND"
	ErrorKindRevoked                   ErrorKind = "REVOKED"
	ErrorKindRevocationUnavailable     ErrorKind = "REVOCATION_STORE_UNAVAILABLE"
	ErrorKindRemoteIdentityUnavailable ErrorKind = "REMOTE_IDENTITY_UNAVAILABLE"
	ErrorKindUnauthenticated           ErrorKind = "UNAUTHENTICATED"
)

// Error carries an ErrorKind together with the underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "jwtx: " + string(e.Kind)
	}
	return "jwtx: " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMalformed                 = &Error{Kind: ErrorKindMalformed}
	ErrInvalidSig                = &Error{Kind: ErrorKindSignatureInvalid}
	ErrExpired                   = &Error{Kind: ErrorKindExpired}
	ErrInvalidKind               = &Error{Kind: ErrorKindInvalidTokenKind}
	ErrRevoked                   = &Error{Kind: ErrorKindRevoked}
	ErrRevocationUnavailable     = &Error{Kind: ErrorKindRevocationUnavailable}
	ErrRemoteIdentityUnavailable = &Error{Kind: ErrorKindRemoteIdentityUnavailable}
	ErrMissingToken              = &Error{Kind: ErrorKindUnauthenticated}
)

// Plain errors that end up wrapped in one of the kinds above.
var (
	ErrNoKey     = errors.New("jwtx: key not found")
	ErrNoSigner  = errors.New("jwtx: codec has no signing key")
	ErrStaticKey = errors.New("jwtx: shared-secret keys are rotated by configuration")
	ErrIssuer    = errors.New("jwtx: issuer mismatch")
	ErrAudience  = errors.New("jwtx: audience mismatch")
	ErrKindClash = errors.New("jwtx: header kind does not match claims kind")
)

// Wrap attaches kind to err.
func Wrap(kind ErrorKind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a
// classified token error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
