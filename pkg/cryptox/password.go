package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params are the argon2id cost parameters recorded in every hash.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  int
	KeyLength   uint32
}

// DefaultArgon2Params follow the OWASP baseline for argon2id.
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var (
	ErrPasswordMismatch = errors.New("cryptox: password does not match")
	ErrInvalidHash      = errors.New("cryptox: invalid password hash")
)

// HashPassword returns a PHC string:
// $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>
func HashPassword(password string) (string, error) {
	p := DefaultArgon2Params
	salt, err := GenerateSecret(p.SaltLength)
	if err != nil {
		return "", err
	}
	sum := argon2.IDKey(peppered(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// VerifyPassword checks password against a hash made by HashPassword, using
// the parameters stored in the hash.
func VerifyPassword(password, encoded string) error {
	h, err := parseHash(encoded)
	if err != nil {
		return err
	}
	sum := argon2.IDKey(peppered(password), h.salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	if subtle.ConstantTimeCompare(sum, h.sum) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// NeedsRehash reports whether encoded was made with parameters other than
// DefaultArgon2Params.
func NeedsRehash(encoded string) bool {
	h, err := parseHash(encoded)
	if err != nil {
		return true
	}
	d := DefaultArgon2Params
	return h.params.Memory != d.Memory ||
		h.params.Iterations != d.Iterations ||
		h.params.Parallelism != d.Parallelism ||
		h.params.KeyLength != d.KeyLength ||
		len(h.salt) != d.SaltLength
}

type argon2Hash struct {
	params Argon2Params
	salt   []byte
	sum    []byte
}

func parseHash(encoded string) (argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argon2Hash{}, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argon2Hash{}, fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, parts[2])
	}

	var h argon2Hash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Iterations, &h.params.Parallelism); err != nil {
		return argon2Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return argon2Hash{}, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	if h.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return argon2Hash{}, fmt.Errorf("%w: hash: %v", ErrInvalidHash, err)
	}
	if len(h.sum) == 0 {
		return argon2Hash{}, ErrInvalidHash
	}
	h.params.SaltLength = len(h.salt)
	h.params.KeyLength = uint32(len(h.sum)) // #nosec G115 -- decoded from a short string
	return h, nil
}

const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GeneratePassword returns a random 16 character password without the
// easily confused characters 0, O, 1, l and I.
func GeneratePassword() (string, error) {
	const length = 16
	out := make([]byte, length)
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("cryptox: generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
