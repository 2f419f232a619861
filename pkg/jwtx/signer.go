package jwtx

import "github.com/golang-jwt/jwt/v5"

// Header names written next to "alg" and "typ".
const (
	HeaderKID  = "kid"
	HeaderKind = "knd"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)

	// VerifyKey is the key a verifier needs: the public key for asymmetric
	// algorithms, the shared secret for HMAC.
	VerifyKey() any
	Validate() error
}

// Publisher is implemented by signers whose verification key is safe to
// publish in a JWKS. Symmetric signers never implement it.
type Publisher interface {
	PublicJWK() JWK
}

// NewSignerRS256 creates an RS256 signer from a PKCS8 or PKCS1 PEM key.
func NewSignerRS256(kid string, pemKey []byte) (Signer, error) {
	return newKeyPairSigner(jwt.SigningMethodRS256, kid, pemKey)
}

// NewSignerEdDSA creates an EdDSA signer from a PKCS8 PEM key.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newKeyPairSigner(jwt.SigningMethodEdDSA, kid, pemKey)
}

// NewSignerES256 creates an ES256 signer from a PKCS8 P-256 PEM key.
func NewSignerES256(kid string, pemKey []byte) (Signer, error) {
	return newKeyPairSigner(jwt.SigningMethodES256, kid, pemKey)
}

// NewSignerHS256 creates an HMAC-SHA256 signer from a raw shared secret of
// at least 32 bytes.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	return newHS256Signer(kid, secret)
}

// signToken is shared by every algorithm so the header layout is identical.
func signToken(method jwt.SigningMethod, kid string, claims Claims, key any) (string, error) {
	t := jwt.NewWithClaims(method, claims)
	t.Header[HeaderKID] = kid
	t.Header[HeaderKind] = string(claims.Kind)
	return t.SignedString(key)
}
