package cryptox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrGenerateSecretFile reads a base64url encoded secret from path. When
// the file does not exist a new secret of size bytes is generated and written
// with 0600 permissions, so every process pointed at the same file shares it.
func LoadOrGenerateSecretFile(path string, size int) ([]byte, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		secret, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("cryptox: decode secret file %q: %w", path, err)
		}
		if len(secret) < size {
			return nil, fmt.Errorf("cryptox: secret file %q holds %d bytes, want at least %d", path, len(secret), size)
		}
		return secret, nil

	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("cryptox: read secret file %q: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("cryptox: create secret dir: %w", err)
	}

	secret, err := RandomBytes(size)
	if err != nil {
		return nil, err
	}

	// O_EXCL so two processes racing on first start cannot both win.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return LoadOrGenerateSecretFile(path, size)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: create secret file %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(base64.RawURLEncoding.EncodeToString(secret)); err != nil {
		return nil, fmt.Errorf("cryptox: write secret file %q: %w", path, err)
	}
	return secret, nil
}
