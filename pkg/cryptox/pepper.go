package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"log/slog"
	"sync"
)

const pepperSize = 32

var (
	pepperMu sync.Mutex
	pepper   []byte
)

// LoadPepper reads the password pepper from path, creating it on first run.
// Hashes made under one pepper never verify under another, so the file must
// outlive the database it protects.
func LoadPepper(path string) error {
	p, err := readOrCreateSecret(path, pepperSize)
	if err != nil {
		return err
	}
	pepperMu.Lock()
	pepper = p
	pepperMu.Unlock()
	return nil
}

// currentPepper falls back to an in-memory pepper when LoadPepper was never
// called, which is what tests want.
func currentPepper() []byte {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper == nil {
		p, err := randomSecret(pepperSize)
		if err != nil {
			panic("cryptox: no entropy for pepper: " + err.Error())
		}
		slog.Warn("no pepper loaded, password hashes will not survive a restart")
		pepper = p
	}
	return pepper
}

// peppered keys the password with the pepper before it reaches argon2, so a
// leaked hash table is useless without the pepper file.
func peppered(password string) []byte {
	mac := hmac.New(sha256.New, currentPepper())
	mac.Write([]byte(password))
	return mac.Sum(nil)
}
