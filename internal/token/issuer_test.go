package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func newTestIssuer(t *testing.T, ttl time.Duration) *Issuer {
	t.Helper()
	iss, err := NewIssuer("ark-watchdog", ttl, testKeyPEM(t))
	require.NoError(t, err)
	return iss
}

func TestIssueAndVerify(t *testing.T) {
	iss := newTestIssuer(t, 24*time.Hour)
	licenseExpiry := time.Now().Add(30 * 24 * time.Hour)

	out, err := iss.Issue("ABC-123", "deadbeefdeadbeef", "monthly", licenseExpiry)
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)

	var claims EntitlementClaims
	parsed, err := jwt.ParseWithClaims(out.Token, &claims, func(tok *jwt.Token) (any, error) {
		return iss.PublicKey(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience("ark-watchdog"))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "ABC-123", claims.Subject)
	assert.Equal(t, "deadbeefdeadbeef", claims.Machine)
	assert.Equal(t, "monthly", claims.Plan)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, 5*time.Second)
	assert.Equal(t, claims.IssuedAt.Time, claims.NotBefore.Time)
	assert.Equal(t, out.ExpiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestIssueExpiryCappedByLicense(t *testing.T) {
	iss := newTestIssuer(t, 24*time.Hour)
	now := time.Now()
	iss.now = func() time.Time { return now }

	licenseExpiry := now.Add(10 * time.Second)
	out, err := iss.Issue("ABC-123", "deadbeefdeadbeef", "monthly", licenseExpiry)
	require.NoError(t, err)

	assert.Equal(t, licenseExpiry.Unix(), out.ExpiresAt.Unix(),
		"token expiry must never exceed license expiry")
}

func TestIssueExpiryUsesTTLWhenShorter(t *testing.T) {
	iss := newTestIssuer(t, time.Hour)
	now := time.Now()
	iss.now = func() time.Time { return now }

	out, err := iss.Issue("ABC-123", "deadbeefdeadbeef", "monthly", now.Add(30*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, now.Truncate(time.Second).Add(time.Hour).Unix(), out.ExpiresAt.Unix())
}

func TestNewIssuerRejectsBadKey(t *testing.T) {
	_, err := NewIssuer("ark-watchdog", time.Hour, []byte("not a pem"))
	assert.Error(t, err)
}

func TestNewIssuerRejectsBadConfig(t *testing.T) {
	pemBytes := testKeyPEM(t)

	_, err := NewIssuer("", time.Hour, pemBytes)
	assert.Error(t, err)

	_, err = NewIssuer("ark-watchdog", 0, pemBytes)
	assert.Error(t, err)
}

func TestIssuerAcceptsPKCS8(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	_, err = NewIssuer("ark-watchdog", time.Hour, pemBytes)
	assert.NoError(t, err)
}

func TestLoadKeyMaterialPrecedence(t *testing.T) {
	dir := t.TempDir()
	filePEM := testKeyPEM(t)
	defaultPEM := testKeyPEM(t)

	filePath := filepath.Join(dir, "configured.pem")
	require.NoError(t, os.WriteFile(filePath, filePEM, 0600))
	defaultPath := filepath.Join(dir, "private.pem")
	require.NoError(t, os.WriteFile(defaultPath, defaultPEM, 0600))

	// Inline PEM text wins over both files.
	got, err := LoadKeyMaterial("inline-pem-text", filePath, defaultPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("inline-pem-text"), got)

	// Configured file beats the default location.
	got, err = LoadKeyMaterial("", filePath, defaultPath)
	require.NoError(t, err)
	assert.Equal(t, filePEM, got)

	// Default location is the last resort.
	got, err = LoadKeyMaterial("", filepath.Join(dir, "missing.pem"), defaultPath)
	require.NoError(t, err)
	assert.Equal(t, defaultPEM, got)
}

func TestLoadKeyMaterialUnavailable(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadKeyMaterial("", filepath.Join(dir, "a.pem"), filepath.Join(dir, "b.pem"))
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}
