package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
)

const (
	defaultJWKSTimeout        = 5 * time.Second
	defaultMinRefreshInterval = 10 * time.Second
)

// KeyCacheConfig configures the JWKS key cache.
type KeyCacheConfig struct {
	// JWKSURL is the issuer's published key endpoint.
	JWKSURL string
	// Timeout bounds each key fetch. Defaults to 5s.
	Timeout time.Duration
	// MinRefreshInterval throttles refreshes triggered by unknown key ids,
	// so a burst of bad tokens cannot amplify load on the issuer.
	// Defaults to 10s.
	MinRefreshInterval time.Duration
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// KeyCache caches the issuer's signing keys and refreshes them on demand
// with a bounded refresh rate. It implements oidc.KeySet so it can back an
// oidc.IDTokenVerifier. Only RS256 signatures are accepted; symmetric
// algorithms are rejected at parse time to prevent downgrade attacks.
type KeyCache struct {
	jwksURL string
	client  *http.Client
	timeout time.Duration

	minRefreshInterval time.Duration

	mu          sync.RWMutex
	keys        []jose.JSONWebKey
	lastAttempt time.Time
}

// NewKeyCache creates a key cache for the given JWKS endpoint.
func NewKeyCache(cfg KeyCacheConfig) *KeyCache {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultJWKSTimeout
	}
	interval := cfg.MinRefreshInterval
	if interval <= 0 {
		interval = defaultMinRefreshInterval
	}

	return &KeyCache{
		jwksURL:            cfg.JWKSURL,
		client:             client,
		timeout:            timeout,
		minRefreshInterval: interval,
	}
}

// VerifySignature checks the JWS signature of rawJWT against the cached key
// set and returns the payload. An unknown key id triggers at most one
// throttled refresh before failing.
func (c *KeyCache) VerifySignature(ctx context.Context, rawJWT string) ([]byte, error) {
	jws, err := jose.ParseSigned(rawJWT, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("expected exactly one signature, got %d", len(jws.Signatures))
	}
	kid := jws.Signatures[0].Header.KeyID

	payload, err := c.verifyWithCached(jws, kid)
	if err == nil {
		return payload, nil
	}

	// Unknown or stale key: refresh (rate-limited) and retry once.
	if refreshErr := c.refresh(ctx); refreshErr != nil {
		return nil, fmt.Errorf("key refresh failed: %w", refreshErr)
	}
	return c.verifyWithCached(jws, kid)
}

func (c *KeyCache) verifyWithCached(jws *jose.JSONWebSignature, kid string) ([]byte, error) {
	keys := c.candidateKeys(kid)
	if len(keys) == 0 {
		return nil, fmt.Errorf("no signing key found for kid %q", kid)
	}

	var lastErr error
	for _, key := range keys {
		payload, err := jws.Verify(key.Key)
		if err == nil {
			return payload, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("signature verification failed: %w", lastErr)
}

// candidateKeys returns cached keys matching kid, or every cached signing
// key when the token carries no kid header.
func (c *KeyCache) candidateKeys(kid string) []jose.JSONWebKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []jose.JSONWebKey
	for _, key := range c.keys {
		if !key.Valid() || (key.Use != "" && key.Use != "sig") {
			continue
		}
		if kid == "" || key.KeyID == kid {
			out = append(out, key)
		}
	}
	return out
}

// refresh fetches the key set unless a refresh ran within the throttle
// window. A throttled call returns nil so the caller retries against the
// existing cache.
func (c *KeyCache) refresh(ctx context.Context) error {
	c.mu.Lock()
	if time.Since(c.lastAttempt) < c.minRefreshInterval {
		c.mu.Unlock()
		return nil
	}
	c.lastAttempt = time.Now()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build JWKS request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS from %s: %w", c.jwksURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var keySet jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}
	if len(keySet.Keys) == 0 {
		return fmt.Errorf("JWKS endpoint returned an empty key set")
	}

	c.mu.Lock()
	c.keys = keySet.Keys
	c.mu.Unlock()
	return nil
}

// KeyCount returns the number of cached keys.
func (c *KeyCache) KeyCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
