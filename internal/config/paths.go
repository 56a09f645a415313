package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExecutableDir returns the directory containing the running binary.
// Under `go test` the working directory is used instead so that relative
// paths resolve inside the test's sandbox.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}

	if isTestBinary(exe) {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return wd, nil
	}

	return filepath.Dir(exe), nil
}

func isTestBinary(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".test") || strings.Contains(base, "__debug") ||
		strings.Contains(path, "go-build")
}

// resolvePaths anchors relative paths at the executable directory and fills
// in the conventional private key location when none is configured.
func (c *Config) resolvePaths() error {
	dir, err := ExecutableDir()
	if err != nil {
		return err
	}

	if !filepath.IsAbs(c.Paths.StoreFile) {
		c.Paths.StoreFile = filepath.Join(dir, c.Paths.StoreFile)
	}

	if c.Paths.PrivateKeyPEM == "" && c.Paths.PrivateKeyFile == "" {
		c.Paths.PrivateKeyFile = filepath.Join(dir, "private.pem")
	} else if c.Paths.PrivateKeyFile != "" && !filepath.IsAbs(c.Paths.PrivateKeyFile) {
		c.Paths.PrivateKeyFile = filepath.Join(dir, c.Paths.PrivateKeyFile)
	}

	if !filepath.IsAbs(c.Paths.LogsDir) {
		c.Paths.LogsDir = filepath.Join(dir, c.Paths.LogsDir)
	}

	return nil
}

// FileExists reports whether path exists and is not a directory
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
