// Package token mints signed, time-bounded entitlement tokens for activated
// (license key, machine) pairs. Issuance is stateless: the server keeps no
// record of issued tokens, and clients verify them offline with the
// corresponding public key.
package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrKeyUnavailable indicates no signing key could be located. This is fatal
// at startup: the service must not accept traffic without a signing key.
var ErrKeyUnavailable = errors.New("signing key unavailable: set a private key PEM, a key file path, or place private.pem next to the binary")

// EntitlementClaims is the claim set embedded in issued tokens.
type EntitlementClaims struct {
	// Machine is the canonical fingerprint the token is bound to.
	Machine string `json:"machine"`
	// Plan is the license's informational plan tag.
	Plan string `json:"plan"`
	jwt.RegisteredClaims
}

// Issued is the result of minting a token.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// Issuer signs entitlement tokens with a process-wide RSA key loaded once at
// startup. There is no rotation support.
type Issuer struct {
	appID      string
	ttl        time.Duration
	privateKey *rsa.PrivateKey
	now        func() time.Time
}

// NewIssuer builds an issuer from PEM key material.
func NewIssuer(appID string, ttl time.Duration, keyPEM []byte) (*Issuer, error) {
	if appID == "" {
		return nil, errors.New("application id is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token TTL must be positive")
	}

	key, err := parseRSAPrivate(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Issuer{
		appID:      appID,
		ttl:        ttl,
		privateKey: key,
		now:        time.Now,
	}, nil
}

// Issue mints an RS256-signed token for the pair. Expiry is the lesser of
// now+TTL and the license's own expiry: a token never outlives its backing
// license.
func (i *Issuer) Issue(licenseKey, fingerprint, plan string, licenseExpiry time.Time) (Issued, error) {
	now := i.now().Truncate(time.Second)

	expiresAt := now.Add(i.ttl)
	if licenseExpiry.Before(expiresAt) {
		expiresAt = licenseExpiry
	}

	claims := EntitlementClaims{
		Machine: fingerprint,
		Plan:    plan,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   licenseKey,
			Audience:  jwt.ClaimStrings{i.appID},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.privateKey)
	if err != nil {
		return Issued{}, fmt.Errorf("sign token: %w", err)
	}

	return Issued{Token: signed, ExpiresAt: expiresAt}, nil
}

// PublicKey returns the verification key matching the signing key.
// Distribution of this key to clients happens out-of-band.
func (i *Issuer) PublicKey() *rsa.PublicKey {
	return &i.privateKey.PublicKey
}

func parseRSAPrivate(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("invalid private key PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}
