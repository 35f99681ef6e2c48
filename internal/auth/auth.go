// Package auth verifies the bearer tokens the hub attaches to every connector
// request.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing Authorization header")
	ErrInvalidToken = errors.New("invalid hub token")
)

// Identity is the caller the hub vouches for.
type Identity struct {
	Username string
	Email    string
	Tenant   string
	Domain   string
}

// Claims are the hub-specific claims carried by the token.
type Claims struct {
	jwt.RegisteredClaims
	Principal string `json:"prn"`
	Email     string `json:"eml"`
	Tenant    string `json:"tenant"`
	Domain    string `json:"domain"`
}

// KeySource supplies the hub's current signing key.
type KeySource interface {
	PublicKey(ctx context.Context) (*rsa.PublicKey, error)
}

// Verifier validates hub tokens against a KeySource.
type Verifier struct {
	keys     KeySource
	issuer   string
	audience string
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithIssuer requires the token's iss claim to match.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) {
		v.issuer = issuer
	}
}

// WithAudience requires the token's aud claim to contain audience.
func WithAudience(audience string) VerifierOption {
	return func(v *Verifier) {
		v.audience = audience
	}
}

func NewVerifier(keys KeySource, opts ...VerifierOption) *Verifier {
	v := &Verifier{keys: keys}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses and validates a raw token and returns the caller identity.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	key, err := v.keys.PublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load hub public key: %w", err)
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"})}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims.Identity(), nil
}

// Identity converts claims into an Identity. The principal has the form
// "username@tenant"; the username is everything before the last "@".
func (c *Claims) Identity() *Identity {
	username := c.Principal
	if i := strings.LastIndex(username, "@"); i > 0 {
		username = username[:i]
	}
	return &Identity{
		Username: username,
		Email:    c.Email,
		Tenant:   c.Tenant,
		Domain:   c.Domain,
	}
}

// ExtractBearerToken extracts the token from the Authorization header.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return strings.TrimSpace(parts[1]), nil
}

type identityKey struct{}

// WithIdentity stores the verified caller on ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the verified caller, or nil when the request was not
// authenticated.
func IdentityFrom(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return id
	}
	return nil
}
