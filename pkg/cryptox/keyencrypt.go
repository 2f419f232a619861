package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	masterKeySize = 32
	masterKeyInfo = "authmesh signing key encryption v1"
)

var (
	masterMu  sync.Mutex
	masterKey []byte
)

// LoadMasterKey reads the secret that encrypts stored signing keys from path,
// creating it on first run. The AES-256 key is derived from the file contents
// with HKDF-SHA256.
func LoadMasterKey(path string) error {
	material, err := readOrCreateSecret(path, masterKeySize)
	if err != nil {
		return err
	}
	key, err := deriveMasterKey(material)
	if err != nil {
		return err
	}
	masterMu.Lock()
	masterKey = key
	masterMu.Unlock()
	return nil
}

func deriveMasterKey(material []byte) ([]byte, error) {
	key := make([]byte, masterKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, []byte(masterKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("cryptox: derive master key: %w", err)
	}
	return key, nil
}

func currentMasterKey() ([]byte, error) {
	masterMu.Lock()
	defer masterMu.Unlock()

	if masterKey == nil {
		material, err := GenerateSecret(masterKeySize)
		if err != nil {
			return nil, err
		}
		if masterKey, err = deriveMasterKey(material); err != nil {
			return nil, err
		}
		slog.Warn("no master key loaded, stored signing keys will not survive a restart")
	}
	return masterKey, nil
}

// ResetMasterKeyForTesting drops the loaded master key.
func ResetMasterKeyForTesting() {
	masterMu.Lock()
	masterKey = nil
	masterMu.Unlock()
}

func masterAEAD() (cipher.AEAD, error) {
	key, err := currentMasterKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: %w", err)
	}
	return cipher.NewGCM(block)
}

// SealPrivateKey encrypts key material with AES-256-GCM under the master key.
// The kid is bound as additional data, so a blob copied onto another key's
// row fails to open. Output layout: nonce || ciphertext || tag.
func SealPrivateKey(kid string, material []byte) ([]byte, error) {
	aead, err := masterAEAD()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(material)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, material, []byte(kid)), nil
}

// OpenPrivateKey reverses SealPrivateKey for the same kid.
func OpenPrivateKey(kid string, sealed []byte) ([]byte, error) {
	aead, err := masterAEAD()
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("cryptox: sealed key too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	material, err := aead.Open(nil, nonce, ciphertext, []byte(kid))
	if err != nil {
		return nil, fmt.Errorf("cryptox: open key %s: %w", kid, err)
	}
	return material, nil
}
