package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HubKey is an RSA key pair standing in for the hub's token signing key.
type HubKey struct {
	Private *rsa.PrivateKey
}

// NewHubKey generates a fresh signing key for a test.
func NewHubKey(t *testing.T) *HubKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return &HubKey{Private: key}
}

// PEM returns the public half in the format the hub serves it.
func (k *HubKey) PEM(t *testing.T) []byte {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(&k.Private.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// Token signs a hub token for principal/email valid for one hour.
func (k *HubKey) Token(t *testing.T, principal, email string) string {
	t.Helper()

	return k.Sign(t, jwt.MapClaims{
		"prn":    principal,
		"eml":    email,
		"tenant": "acme",
		"domain": "acme.example",
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
}

// Sign signs arbitrary claims with RS256.
func (k *HubKey) Sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(k.Private)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}
