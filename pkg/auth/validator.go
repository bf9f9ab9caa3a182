package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/tablyhq/tably/pkg/apperrors"
)

// ValidatorConfig configures bearer-token validation.
type ValidatorConfig struct {
	// IssuerURL is the identity provider's issuer, e.g. "https://acme.auth0.com/".
	IssuerURL string
	// Audience is the API identifier tokens must be issued for.
	Audience string
	// JWKSTimeout bounds key fetches. Defaults to 5s.
	JWKSTimeout time.Duration
	// MinKeyRefreshInterval throttles unknown-kid key refreshes. Defaults to 10s.
	MinKeyRefreshInterval time.Duration
	// HTTPClient overrides the client used for key fetches, mainly for tests.
	HTTPClient *http.Client
}

// Validate checks required fields.
func (c ValidatorConfig) Validate() error {
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer URL is required")
	}
	if c.Audience == "" {
		return fmt.Errorf("audience is required")
	}
	return nil
}

// Validator verifies bearer tokens against the issuer's rotating key set and
// checks issuer, audience, expiry, and signing algorithm. It is safe for
// concurrent use; the only mutable state is the key cache.
type Validator struct {
	verifier *oidc.IDTokenVerifier
	keys     *KeyCache
}

// NewValidator creates a token validator for the given issuer and audience.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validator config: %w", err)
	}

	keys := NewKeyCache(KeyCacheConfig{
		JWKSURL:            strings.TrimSuffix(cfg.IssuerURL, "/") + "/.well-known/jwks.json",
		Timeout:            cfg.JWKSTimeout,
		MinRefreshInterval: cfg.MinKeyRefreshInterval,
		Client:             cfg.HTTPClient,
	})

	verifier := oidc.NewVerifier(cfg.IssuerURL, keys, &oidc.Config{
		ClientID:             cfg.Audience,
		SupportedSigningAlgs: []string{oidc.RS256},
	})

	return &Validator{verifier: verifier, keys: keys}, nil
}

// Validate verifies rawToken and returns its claims. Every failure mode
// (bad signature, wrong issuer or audience, expiry, malformed token, key
// fetch failure) surfaces as an AuthenticationError.
func (v *Validator) Validate(ctx context.Context, rawToken string) (map[string]any, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, apperrors.NewAuthenticationError(err)
	}

	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return nil, apperrors.NewAuthenticationError(fmt.Errorf("failed to decode claims: %w", err))
	}
	return claims, nil
}

// KeyCount exposes the size of the cached key set, for health reporting.
func (v *Validator) KeyCount() int { return v.keys.KeyCount() }
