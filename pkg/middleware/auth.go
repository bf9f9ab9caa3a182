package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/contextkeys"
	"github.com/tablyhq/tably/pkg/httputil"
	"github.com/tablyhq/tably/pkg/observability"
)

// TokenValidator verifies a raw bearer token and returns its claims.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (map[string]any, error)
}

// IdentityExtractor maps validated claims to a canonical identity.
type IdentityExtractor interface {
	Extract(claims map[string]any) (*auth.Identity, error)
}

// Synchronizer provisions the identity and resolves the principal.
type Synchronizer interface {
	Sync(ctx context.Context, identity *auth.Identity) (*auth.Principal, error)
}

// AuthMiddleware authenticates requests: bearer extraction, token
// validation, claim extraction, then best-effort provisioning. Every
// authentication failure maps to the same generic 401 so responses never
// reveal why a token was rejected.
type AuthMiddleware struct {
	validator TokenValidator
	extractor IdentityExtractor
	sync      Synchronizer
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewAuthMiddleware creates an authentication middleware
func NewAuthMiddleware(validator TokenValidator, extractor IdentityExtractor, sync Synchronizer, logger *observability.Logger, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		extractor: extractor,
		sync:      sync,
		logger:    logger,
		metrics:   metrics,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken, ok := bearerToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, "invalid token")
			return
		}

		claims, err := m.validator.Validate(r.Context(), rawToken)
		if err != nil {
			m.countValidation("failure")
			m.logger.WithError(err).Debug("token validation failed")
			httputil.WriteUnauthorized(w, "invalid token")
			return
		}
		m.countValidation("success")

		identity, err := m.extractor.Extract(claims)
		if err != nil {
			m.logger.WithError(err).Debug("claim extraction failed")
			httputil.WriteUnauthorized(w, "invalid token")
			return
		}

		if identity.RoleDefaulted && m.metrics != nil {
			m.metrics.RoleDefaultedTotal.Inc()
		}

		// Provisioning is best effort. A failed sync is logged and the
		// request continues with the claims-derived principal.
		principal, err := m.sync.Sync(r.Context(), identity)
		if err != nil {
			m.logger.WithError(err).WithField("subject", identity.Subject).
				Warn("provisioning failed, continuing with claims-derived principal")
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = contextkeys.WithSubject(ctx, principal.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) countValidation(outcome string) {
	if m.metrics != nil {
		m.metrics.TokenValidationsTotal.WithLabelValues(outcome).Inc()
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetPrincipal extracts the authenticated principal from the request, nil
// when the request did not pass the auth middleware.
func GetPrincipal(r *http.Request) *auth.Principal {
	principal, ok := r.Context().Value(contextkeys.PrincipalKey).(*auth.Principal)
	if !ok {
		return nil
	}
	return principal
}
