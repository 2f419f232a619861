package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/retrade/authmesh/pkg/cryptox"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/slogx"
)

// ErrUnauthenticated wraps every verification failure. Transports answer it
// with one uniform reply; the wrapped jwtx.ErrorKind is for logs only.
var ErrUnauthenticated = errors.New("authn: unauthorized")

var verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "authn_verifications_total",
	Help: "Token verifications by expected kind and outcome.",
}, []string{"kind", "outcome"})

// RevocationChecker is satisfied by *revocation.Checker.
type RevocationChecker interface {
	Check(ctx context.Context, sessionID string) error
}

// Config wires a Verifier.
type Config struct {
	// Kind every credential must carry. Defaults to ACCESS.
	Kind jwtx.Kind

	// Codec of Kind's signing-key scope.
	Codec *jwtx.Codec

	// Revocation is optional; without it sessions are never denylisted.
	Revocation RevocationChecker
}

// Verifier authenticates credentials of exactly one token kind.
type Verifier struct {
	kind       jwtx.Kind
	codec      *jwtx.Codec
	revocation RevocationChecker
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Codec == nil {
		return nil, errors.New("authn: codec is required")
	}
	if cfg.Kind == "" {
		cfg.Kind = jwtx.KindAccess
	}
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("authn: unknown token kind %q", cfg.Kind)
	}
	return &Verifier{
		kind:       cfg.Kind,
		codec:      cfg.Codec,
		revocation: cfg.Revocation,
	}, nil
}

// Kind returns the token kind this verifier accepts.
func (v *Verifier) Kind() jwtx.Kind { return v.kind }

// Leeway is the clock skew tolerated past a token's expiry.
func (v *Verifier) Leeway() time.Duration { return v.codec.Leeway() }

// Authenticate pulls the credential for the verifier's kind out of src and
// verifies it.
func (v *Verifier) Authenticate(ctx context.Context, src Source) (Identity, error) {
	raw, _ := src.Credential(v.kind)
	return v.Verify(ctx, raw)
}

// Verify checks raw and returns the caller's identity. Errors match both
// ErrUnauthenticated and the jwtx sentinel of their kind.
func (v *Verifier) Verify(ctx context.Context, raw string) (Identity, error) {
	claims, err := v.verify(ctx, strings.TrimSpace(raw))
	if err != nil {
		kind := jwtx.KindOf(err)
		verificationsTotal.WithLabelValues(string(v.kind), strings.ToLower(string(kind))).Inc()

		log := slogx.FromContext(ctx)
		if kind == jwtx.ErrorKindUnauthenticated {
			log.Debug("no credential presented", "expected_kind", v.kind)
		} else {
			log.Warn("token rejected",
				"expected_kind", v.kind,
				"error_kind", kind,
				"token_fp", cryptox.Fingerprint(raw),
				"err", err,
			)
		}
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	verificationsTotal.WithLabelValues(string(v.kind), "ok").Inc()

	id := Identity{
		Subject:   claims.Subject,
		Username:  claims.Username,
		Roles:     claims.Roles,
		SessionID: claims.SID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (v *Verifier) verify(ctx context.Context, raw string) (jwtx.Claims, error) {
	if raw == "" {
		return jwtx.Claims{}, jwtx.ErrMissingToken
	}

	// Kind first: a token of another kind is refused before its signature
	// is even looked at, since it was signed by another scope's keys.
	kind, err := jwtx.PeekKind(raw)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if kind != v.kind {
		return jwtx.Claims{}, jwtx.Wrap(jwtx.ErrorKindInvalidTokenKind,
			fmt.Errorf("expected %s, got %s", v.kind, kind))
	}

	claims, err := v.codec.Decode(raw)
	if err != nil {
		return jwtx.Claims{}, err
	}

	if v.revocation != nil {
		if err := v.revocation.Check(ctx, claims.SID); err != nil {
			return jwtx.Claims{}, err
		}
	}
	return claims, nil
}
