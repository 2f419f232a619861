package cryptox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// readOrCreateSecret returns the trimmed contents of path. A missing file is
// created with size fresh random bytes, base64url encoded, readable only by
// the owner.
func readOrCreateSecret(path string, size int) ([]byte, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if err == nil {
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			return nil, fmt.Errorf("cryptox: %s is empty", path)
		}
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cryptox: read %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("cryptox: create directory for %s: %w", path, err)
	}
	data, err = randomSecret(size)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("cryptox: write %s: %w", path, err)
	}
	return data, nil
}

func randomSecret(size int) ([]byte, error) {
	raw, err := GenerateSecret(size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.RawURLEncoding.EncodedLen(len(raw)))
	base64.RawURLEncoding.Encode(out, raw)
	return out, nil
}
