// Package tokens turns an authenticated principal into a TokenSet and
// exchanges REFRESH and TWO_FACTOR_PENDING tokens for fresh ACCESS tokens.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/retrade/authmesh/pkg/idx"
	"github.com/retrade/authmesh/pkg/jwtx"
)

var (
	// ErrInvalidProof is returned when the second factor does not verify.
	ErrInvalidProof = errors.New("tokens: invalid second factor proof")

	ErrEmptySubject = errors.New("tokens: principal subject is required")
)

// Principal is the authenticated account a TokenSet is issued for.
type Principal struct {
	Subject  string
	Username string
	Roles    []string
}

// ProofVerifier checks the second factor presented for subject.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, subject, proof string) error
}

// ProofVerifierFunc adapts a function to ProofVerifier.
type ProofVerifierFunc func(ctx context.Context, subject, proof string) error

func (f ProofVerifierFunc) VerifyProof(ctx context.Context, subject, proof string) error {
	return f(ctx, subject, proof)
}

// RevocationChecker is satisfied by *revocation.Checker.
type RevocationChecker interface {
	Check(ctx context.Context, sessionID string) error
}

// Config wires an Issuer. Every kind has its own codec so a token signed
// for one kind never verifies as another.
type Config struct {
	Access    *jwtx.Codec
	Refresh   *jwtx.Codec
	TwoFactor *jwtx.Codec

	// Zero TTLs select the jwtx defaults.
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	TwoFactorTTL time.Duration

	// Revocation is optional. Without it, refresh and 2FA completion
	// never consult a denylist.
	Revocation RevocationChecker

	// Proof verifies the second factor in CompleteTwoFactor.
	Proof ProofVerifier
}

type Issuer struct {
	codecs     map[jwtx.Kind]*jwtx.Codec
	ttls       map[jwtx.Kind]time.Duration
	revocation RevocationChecker
	proof      ProofVerifier
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Access == nil || cfg.Refresh == nil || cfg.TwoFactor == nil {
		return nil, errors.New("tokens: a codec is required for every token kind")
	}
	if cfg.Proof == nil {
		return nil, errors.New("tokens: a proof verifier is required")
	}

	return &Issuer{
		codecs: map[jwtx.Kind]*jwtx.Codec{
			jwtx.KindAccess:           cfg.Access,
			jwtx.KindRefresh:          cfg.Refresh,
			jwtx.KindTwoFactorPending: cfg.TwoFactor,
		},
		ttls: map[jwtx.Kind]time.Duration{
			jwtx.KindAccess:           orDefault(cfg.AccessTTL, jwtx.DefaultAccessTokenTTL),
			jwtx.KindRefresh:          orDefault(cfg.RefreshTTL, jwtx.DefaultRefreshTokenTTL),
			jwtx.KindTwoFactorPending: orDefault(cfg.TwoFactorTTL, jwtx.DefaultTwoFactorTTL),
		},
		revocation: cfg.Revocation,
		proof:      cfg.Proof,
	}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// TTL returns the lifetime of tokens of kind.
func (i *Issuer) TTL(kind jwtx.Kind) time.Duration {
	return i.ttls[kind]
}

// Codec returns the codec of kind.
func (i *Issuer) Codec(kind jwtx.Kind) *jwtx.Codec {
	return i.codecs[kind]
}

// Issue creates the TokenSet for p. An empty sessionID starts a new session.
// When requiresTwoFactor is set only a TWO_FACTOR_PENDING token is returned.
func (i *Issuer) Issue(ctx context.Context, p Principal, sessionID string, requiresTwoFactor bool) (TokenSet, error) {
	if p.Subject == "" {
		return TokenSet{}, ErrEmptySubject
	}
	if sessionID == "" {
		sessionID = idx.New().String()
	}

	if requiresTwoFactor {
		claims := jwtx.NewClaims(p.Subject, p.Username, p.Roles, sessionID)
		pending, err := i.encode(claims, jwtx.KindTwoFactorPending)
		if err != nil {
			return TokenSet{}, err
		}
		return TokenSet{
			Tokens:            map[jwtx.Kind]jwtx.Token{jwtx.KindTwoFactorPending: pending},
			Roles:             []string{},
			TwoFactorRequired: true,
			Subject:           p.Subject,
			SessionID:         sessionID,
		}, nil
	}

	return i.issueSession(p, sessionID)
}

func (i *Issuer) issueSession(p Principal, sessionID string) (TokenSet, error) {
	claims := jwtx.NewClaims(p.Subject, p.Username, p.Roles, sessionID)

	access, err := i.encode(claims, jwtx.KindAccess)
	if err != nil {
		return TokenSet{}, err
	}
	refresh, err := i.encode(claims, jwtx.KindRefresh)
	if err != nil {
		return TokenSet{}, err
	}

	return TokenSet{
		Tokens: map[jwtx.Kind]jwtx.Token{
			jwtx.KindAccess:  access,
			jwtx.KindRefresh: refresh,
		},
		Roles:     slices.Clone(claims.Roles),
		Subject:   p.Subject,
		SessionID: sessionID,
	}, nil
}

// Refresh exchanges a REFRESH token for a new ACCESS token in the same
// session. The refresh token itself stays valid until it expires or its
// session is revoked.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	claims, err := i.decode(ctx, refreshToken, jwtx.KindRefresh)
	if err != nil {
		return TokenSet{}, err
	}

	next := jwtx.NewClaims(claims.Subject, claims.Username, claims.Roles, claims.SID)
	access, err := i.encode(next, jwtx.KindAccess)
	if err != nil {
		return TokenSet{}, err
	}

	return TokenSet{
		Tokens:    map[jwtx.Kind]jwtx.Token{jwtx.KindAccess: access},
		Roles:     slices.Clone(next.Roles),
		Subject:   next.Subject,
		SessionID: next.SID,
	}, nil
}

// CompleteTwoFactor exchanges a TWO_FACTOR_PENDING token and a valid proof
// for ACCESS and REFRESH tokens in the same session.
func (i *Issuer) CompleteTwoFactor(ctx context.Context, pendingToken, proof string) (TokenSet, error) {
	claims, err := i.decode(ctx, pendingToken, jwtx.KindTwoFactorPending)
	if err != nil {
		return TokenSet{}, err
	}

	if err := i.proof.VerifyProof(ctx, claims.Subject, proof); err != nil {
		return TokenSet{}, fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}

	return i.issueSession(Principal{
		Subject:  claims.Subject,
		Username: claims.Username,
		Roles:    claims.Roles,
	}, claims.SID)
}

// decode checks kind before the signature, then the denylist.
func (i *Issuer) decode(ctx context.Context, raw string, want jwtx.Kind) (jwtx.Claims, error) {
	kind, err := jwtx.PeekKind(raw)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if kind != want {
		return jwtx.Claims{}, jwtx.Wrap(jwtx.ErrorKindInvalidTokenKind,
			fmt.Errorf("expected %s, got %s", want, kind))
	}

	claims, err := i.codecs[want].Decode(raw)
	if err != nil {
		return jwtx.Claims{}, err
	}

	if i.revocation != nil {
		if err := i.revocation.Check(ctx, claims.SID); err != nil {
			return jwtx.Claims{}, err
		}
	}
	return claims, nil
}

func (i *Issuer) encode(claims jwtx.Claims, kind jwtx.Kind) (jwtx.Token, error) {
	tok, err := i.codecs[kind].Encode(claims, kind, i.ttls[kind])
	if err != nil {
		return jwtx.Token{}, fmt.Errorf("tokens: encode %s: %w", kind, err)
	}
	return tok, nil
}
