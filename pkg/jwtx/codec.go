package jwtx

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/retrade/authmesh/pkg/cryptox"
)

// DefaultLeeway absorbs clock skew between the issuing and verifying hosts.
const DefaultLeeway = 30 * time.Second

const jtiSize = 20

// segmentEncoding rejects non-canonical base64 so two different strings can
// never decode to the same signature bytes.
var segmentEncoding = base64.RawURLEncoding.Strict()

// Token is the signed, serialized form of Claims.
type Token struct {
	Raw       string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Claims as they were signed.
	Claims Claims
}

// CodecOptions captures what a Codec stamps on and expects from tokens.
type CodecOptions struct {
	// Issuer written on encode and required on decode. Empty means "don't care".
	Issuer string

	// Audience written on encode; on decode at least one must be present.
	Audience []string

	// Leeway for exp checks. Zero selects DefaultLeeway, negative disables it.
	Leeway time.Duration

	// Now is the clock, read at encode and at decode time. Defaults to time.Now.
	Now func() time.Time
}

// Codec signs and verifies tokens for a single signing-key scope. One Codec
// exists per scope; it never performs I/O.
type Codec struct {
	keys     *KeyManager
	verify   *KeySet
	issuer   string
	audience []string
	leeway   time.Duration
	now      func() time.Time
}

// NewCodec returns a Codec that signs with km's current key and verifies
// against every key km knows about.
func NewCodec(km *KeyManager, opts CodecOptions) *Codec {
	c := newCodec(km.KeySet, opts)
	c.keys = km
	return c
}

// NewVerifyingCodec returns a Codec that can only decode. Resource services
// use it with a KeySet fed from the JWKS endpoint or configured secrets.
func NewVerifyingCodec(keys *KeySet, opts CodecOptions) *Codec {
	return newCodec(keys, opts)
}

func newCodec(keys *KeySet, opts CodecOptions) *Codec {
	leeway := opts.Leeway
	switch {
	case leeway == 0:
		leeway = DefaultLeeway
	case leeway < 0:
		leeway = 0
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{
		verify:   keys,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		leeway:   leeway,
		now:      now,
	}
}

// KeySet returns the keys this codec verifies against.
func (c *Codec) KeySet() *KeySet { return c.verify }

// Leeway is how long past exp a token still decodes.
func (c *Codec) Leeway() time.Duration { return c.leeway }

// Encode signs claims as kind with an expiry of now+ttl using the current key.
func (c *Codec) Encode(claims Claims, kind Kind, ttl time.Duration) (Token, error) {
	if c.keys == nil {
		return Token{}, ErrNoSigner
	}
	if !kind.Valid() {
		return Token{}, fmt.Errorf("jwtx: unknown token kind %q", kind)
	}
	if ttl <= 0 {
		return Token{}, errors.New("jwtx: ttl must be positive")
	}

	signer := c.keys.Current()
	if signer == nil {
		return Token{}, ErrNoSigner
	}

	now := c.now()
	claims.Kind = kind
	claims.Issuer = c.issuer
	if len(c.audience) > 0 {
		claims.Audience = jwt.ClaimStrings(c.audience)
	}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.ID == "" {
		jti, err := cryptox.RandomToken(jtiSize)
		if err != nil {
			return Token{}, fmt.Errorf("jwtx: jti: %w", err)
		}
		claims.ID = jti
	}

	raw, err := signer.Sign(claims)
	if err != nil {
		return Token{}, fmt.Errorf("jwtx: sign: %w", err)
	}

	return Token{
		Raw:       raw,
		Kind:      kind,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Claims:    claims,
	}, nil
}

// header is the part of the JOSE header we route on.
type header struct {
	Alg  string `json:"alg"`
	KID  string `json:"kid,omitempty"`
	Kind Kind   `json:"knd,omitempty"`
}

// splitToken parses the structure of raw without verifying anything.
func splitToken(raw string) (header, []string, error) {
	var h header

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return h, nil, Wrap(ErrorKindMalformed, errors.New("token must have three segments"))
	}

	hb, err := segmentEncoding.DecodeString(parts[0])
	if err != nil {
		return h, nil, Wrap(ErrorKindMalformed, fmt.Errorf("header: %w", err))
	}
	if err := json.Unmarshal(hb, &h); err != nil {
		return h, nil, Wrap(ErrorKindMalformed, fmt.Errorf("header: %w", err))
	}
	if h.Alg == "" || strings.EqualFold(h.Alg, "none") {
		return h, nil, Wrap(ErrorKindMalformed, errors.New("header: missing alg"))
	}

	return h, parts, nil
}

// PeekKind returns the kind announced in the envelope without checking the
// signature. It is for routing only; Decode re-checks it against the
// signed claims.
func PeekKind(raw string) (Kind, error) {
	h, _, err := splitToken(raw)
	if err != nil {
		return "", err
	}
	if !h.Kind.Valid() {
		return "", Wrap(ErrorKindMalformed, fmt.Errorf("header: unknown kind %q", h.Kind))
	}
	return h.Kind, nil
}

// Decode verifies raw and returns its claims. The signature is checked over
// the raw segments before the payload is parsed, so any change to the
// payload surfaces as ErrInvalidSig.
func (c *Codec) Decode(raw string) (Claims, error) {
	h, parts, err := splitToken(raw)
	if err != nil {
		return Claims{}, err
	}

	sig, err := segmentEncoding.DecodeString(parts[2])
	if err != nil {
		return Claims{}, Wrap(ErrorKindMalformed, fmt.Errorf("signature: %w", err))
	}

	if err := c.verifySignature(h, parts[0]+"."+parts[1], sig); err != nil {
		return Claims{}, err
	}

	pb, err := segmentEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, Wrap(ErrorKindMalformed, fmt.Errorf("payload: %w", err))
	}
	var claims Claims
	if err := json.Unmarshal(pb, &claims); err != nil {
		return Claims{}, Wrap(ErrorKindMalformed, fmt.Errorf("payload: %w", err))
	}
	if !claims.Kind.Valid() || claims.Kind != h.Kind {
		return Claims{}, Wrap(ErrorKindMalformed, ErrKindClash)
	}

	if err := c.validateClaims(&claims); err != nil {
		return Claims{}, err
	}

	return claims, nil
}

// verifySignature tries the candidate keys newest first. The algorithm in
// the header must match the algorithm the key was registered with, which
// rules out HMAC-with-public-key confusion.
func (c *Codec) verifySignature(h header, signingString string, sig []byte) error {
	method := jwt.GetSigningMethod(h.Alg)
	if method == nil {
		return Wrap(ErrorKindSignatureInvalid, fmt.Errorf("unsupported alg %q", h.Alg))
	}

	candidates := c.verify.candidates(h.KID)
	if len(candidates) == 0 {
		return Wrap(ErrorKindSignatureInvalid, ErrNoKey)
	}

	for _, k := range candidates {
		if k.alg != h.Alg {
			continue
		}
		if err := method.Verify(signingString, sig, k.key); err == nil {
			return nil
		}
	}

	return Wrap(ErrorKindSignatureInvalid, jwt.ErrSignatureInvalid)
}

func (c *Codec) validateClaims(claims *Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if err := jwt.NewValidator(opts...).Validate(claims); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Wrap(ErrorKindExpired, err)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return Wrap(ErrorKindMalformed, ErrIssuer)
		}
		return Wrap(ErrorKindMalformed, err)
	}

	if len(c.audience) > 0 && !claims.hasAudience(c.audience) {
		return Wrap(ErrorKindMalformed, ErrAudience)
	}
	return nil
}
