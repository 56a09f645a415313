package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"arklicense/internal/infrastructure"
	"arklicense/internal/license"
	"arklicense/internal/store"
	"arklicense/internal/token"
)

const testAppID = "ark-watchdog"

func testIssuer(t *testing.T) (*token.Issuer, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	iss, err := token.NewIssuer(testAppID, 24*time.Hour, pemBytes)
	require.NoError(t, err)
	return iss, &key.PublicKey
}

func testActivation(t *testing.T) (ActivationService, AdminService, *store.Store, *rsa.PublicKey) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st := store.New(filepath.Join(t.TempDir(), "valid_keys.json"), logger)
	iss, pub := testIssuer(t)
	return NewActivationService(st, iss, testAppID, logger, nil),
		NewAdminService(st, logger, nil),
		st, pub
}

func parseClaims(t *testing.T, tokenString string, pub *rsa.PublicKey) *token.EntitlementClaims {
	t.Helper()
	claims := &token.EntitlementClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience(testAppID))
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return claims
}

func TestActivate_Success(t *testing.T) {
	svc, admin, st, pub := testActivation(t)
	ctx := context.Background()
	expires := time.Now().Add(365 * 24 * time.Hour).Unix()

	_, err := admin.Upsert(ctx, "ABC-123", true, "monthly", expires, 1)
	require.NoError(t, err)

	result, err := svc.Activate(ctx, "ABC-123", testAppID, "DEADBEEFDEADBEEF")
	require.NoError(t, err)
	assert.Equal(t, "deadbeefdeadbeef", result.Fingerprint)
	assert.Equal(t, "monthly", result.Plan)
	assert.NotEmpty(t, result.Token)

	claims := parseClaims(t, result.Token, pub)
	assert.Equal(t, "ABC-123", claims.Subject)
	assert.Equal(t, "deadbeefdeadbeef", claims.Machine)
	assert.Equal(t, "monthly", claims.Plan)

	rec, ok, err := st.Get("ABC-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"deadbeefdeadbeef"}, rec.Machines)
}

func TestActivate_Idempotent(t *testing.T) {
	svc, admin, st, _ := testActivation(t)
	ctx := context.Background()
	expires := time.Now().Add(30 * 24 * time.Hour).Unix()

	_, err := admin.Upsert(ctx, "ABC-123", true, "monthly", expires, 1)
	require.NoError(t, err)

	first, err := svc.Activate(ctx, "ABC-123", testAppID, "deadbeefdeadbeef")
	require.NoError(t, err)
	second, err := svc.Activate(ctx, "ABC-123", testAppID, "deadbeefdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	rec, _, err := st.Get("ABC-123")
	require.NoError(t, err)
	assert.Len(t, rec.Machines, 1)
}

func TestActivate_SeatLimit(t *testing.T) {
	svc, admin, st, _ := testActivation(t)
	ctx := context.Background()
	expires := time.Now().Add(30 * 24 * time.Hour).Unix()

	_, err := admin.Upsert(ctx, "ABC-123", true, "monthly", expires, 1)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "ABC-123", testAppID, "deadbeefdeadbeef")
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "ABC-123", testAppID, "cafebabecafebabe")
	assert.ErrorIs(t, err, license.ErrSeatLimit)

	rec, _, err := st.Get("ABC-123")
	require.NoError(t, err)
	assert.Equal(t, []string{"deadbeefdeadbeef"}, rec.Machines)
}

func TestActivate_AppMismatch_NoMutation(t *testing.T) {
	svc, admin, st, _ := testActivation(t)
	ctx := context.Background()
	expires := time.Now().Add(30 * 24 * time.Hour).Unix()

	_, err := admin.Upsert(ctx, "ABC-123", true, "monthly", expires, 2)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "ABC-123", "other-app", "deadbeefdeadbeef")
	assert.ErrorIs(t, err, license.ErrAppMismatch)

	rec, _, err := st.Get("ABC-123")
	require.NoError(t, err)
	assert.Empty(t, rec.Machines)
}

func TestActivate_CheckOrdering(t *testing.T) {
	svc, admin, _, _ := testActivation(t)
	ctx := context.Background()

	// Wrong app beats unknown key.
	_, err := svc.Activate(ctx, "NO-SUCH-KEY", "other-app", "deadbeefdeadbeef")
	assert.ErrorIs(t, err, license.ErrAppMismatch)

	// Unknown key.
	_, err = svc.Activate(ctx, "NO-SUCH-KEY", testAppID, "deadbeefdeadbeef")
	assert.ErrorIs(t, err, license.ErrInvalidKey)

	// Inactive beats expired.
	past := time.Now().Add(-time.Hour).Unix()
	_, err = admin.Upsert(ctx, "OFF-KEY", false, "monthly", past, 1)
	require.NoError(t, err)
	_, err = svc.Activate(ctx, "OFF-KEY", testAppID, "deadbeefdeadbeef")
	assert.ErrorIs(t, err, license.ErrInactive)

	// Expired beats seat checks.
	_, err = admin.Upsert(ctx, "OLD-KEY", true, "monthly", past, 1)
	require.NoError(t, err)
	_, err = svc.Activate(ctx, "OLD-KEY", testAppID, "deadbeefdeadbeef")
	assert.ErrorIs(t, err, license.ErrExpired)

	// Unknown key beats a garbage machine identifier.
	_, err = svc.Activate(ctx, "NO-SUCH-KEY", testAppID, "   ")
	assert.ErrorIs(t, err, license.ErrInvalidKey)

	// Inactive beats a garbage machine identifier.
	_, err = svc.Activate(ctx, "OFF-KEY", testAppID, "   ")
	assert.ErrorIs(t, err, license.ErrInactive)

	// Expired beats a garbage machine identifier.
	_, err = svc.Activate(ctx, "OLD-KEY", testAppID, "   ")
	assert.ErrorIs(t, err, license.ErrExpired)
}

func TestActivate_BadMachineID(t *testing.T) {
	svc, admin, _, _ := testActivation(t)
	ctx := context.Background()
	expires := time.Now().Add(30 * 24 * time.Hour).Unix()

	_, err := admin.Upsert(ctx, "ABC-123", true, "monthly", expires, 1)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "ABC-123", testAppID, "   ")
	assert.ErrorIs(t, err, license.ErrBadMachineID)
}

func TestActivate_TokenCappedByLicenseExpiry(t *testing.T) {
	svc, admin, _, pub := testActivation(t)
	ctx := context.Background()

	// License lapses in one hour, well inside the 24h token TTL.
	expires := time.Now().Add(time.Hour).Unix()
	_, err := admin.Upsert(ctx, "ABC-123", true, "monthly", expires, 1)
	require.NoError(t, err)

	result, err := svc.Activate(ctx, "ABC-123", testAppID, "deadbeefdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, expires, result.ExpiresAt.Unix())

	claims := parseClaims(t, result.Token, pub)
	assert.Equal(t, expires, claims.ExpiresAt.Unix())
}

func TestActivate_PersistBeforeRespond(t *testing.T) {
	svc, admin, st, _ := testActivation(t)
	ctx := context.Background()
	expires := time.Now().Add(30 * 24 * time.Hour).Unix()

	_, err := admin.Upsert(ctx, "ABC-123", true, "monthly", expires, 1)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "ABC-123", testAppID, "deadbeefdeadbeef")
	require.NoError(t, err)

	// A fresh store reading the same file must already see the binding.
	reread := store.New(st.Path(), slog.Default())
	rec, ok, err := reread.Get("ABC-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"deadbeefdeadbeef"}, rec.Machines)
}

func TestActivate_BusinessMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := infrastructure.CreateBusinessMetrics(provider.Meter("arklicense-test"))
	require.NoError(t, err)

	st := store.New(filepath.Join(t.TempDir(), "valid_keys.json"), logger)
	st.SetWriteHook(func() { metrics.RecordStoreWrite(context.Background()) })
	iss, _ := testIssuer(t)
	svc := NewActivationService(st, iss, testAppID, logger, metrics)
	admin := NewAdminService(st, logger, metrics)

	ctx := context.Background()
	expires := time.Now().Add(30 * 24 * time.Hour).Unix()
	_, err = admin.Upsert(ctx, "ABC-123", true, "monthly", expires, 2)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "ABC-123", testAppID, "deadbeefdeadbeef")
	require.NoError(t, err)
	// Rebinding the same machine issues a token without a new seat or write.
	_, err = svc.Activate(ctx, "ABC-123", testAppID, "deadbeefdeadbeef")
	require.NoError(t, err)
	_, err = svc.Activate(ctx, "ABC-123", testAppID, "cafebabecafebabe")
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, int64(3), counterValue(t, rm, "license_tokens_issued_total"))
	assert.Equal(t, int64(2), counterValue(t, rm, "license_seats_bound_total"))
	// One write for the upsert, one per new binding.
	assert.Equal(t, int64(3), counterValue(t, rm, "store_writes_total"))
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.Truef(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}
