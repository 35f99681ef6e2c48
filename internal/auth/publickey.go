package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type cachedKey struct {
	key     *rsa.PublicKey
	expires time.Time
}

// PublicKeyCache fetches the hub's PEM encoded public key and keeps it until
// the TTL passes. Concurrent refreshes may race; each one stores the same
// externally sourced key, so the last writer wins. A failed refresh leaves
// the previous entry untouched.
type PublicKeyCache struct {
	url    string
	ttl    time.Duration
	client *http.Client
	now    func() time.Time

	entry atomic.Pointer[cachedKey]
}

func NewPublicKeyCache(url string, ttl time.Duration, client *http.Client) *PublicKeyCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &PublicKeyCache{
		url:    url,
		ttl:    ttl,
		client: client,
		now:    time.Now,
	}
}

// PublicKey returns the cached key, fetching it when missing or expired.
func (c *PublicKeyCache) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	if e := c.entry.Load(); e != nil && c.now().Before(e.expires) {
		return e.key, nil
	}

	key, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.entry.Store(&cachedKey{key: key, expires: c.now().Add(c.ttl)})
	return key, nil
}

func (c *PublicKeyCache) fetch(ctx context.Context) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("public key request failed (status %d): %s", resp.StatusCode, string(body))
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// StaticKey is a KeySource backed by a fixed key.
type StaticKey struct {
	Key *rsa.PublicKey
}

func (s StaticKey) PublicKey(context.Context) (*rsa.PublicKey, error) {
	return s.Key, nil
}
