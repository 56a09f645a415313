package token

import (
	"os"
	"strings"
)

// LoadKeyMaterial resolves signing key PEM bytes with the configured
// precedence: inline PEM text first, then an explicit file path, then the
// conventional default path. Returns ErrKeyUnavailable when none yields key
// material.
func LoadKeyMaterial(pemText, filePath, defaultPath string) ([]byte, error) {
	if strings.TrimSpace(pemText) != "" {
		return []byte(pemText), nil
	}

	for _, path := range []string{filePath, defaultPath} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return nil, ErrKeyUnavailable
}
