package auth

import (
	"fmt"
	"strings"

	"github.com/tablyhq/tably/pkg/apperrors"
)

// Standard claim names consumed from the token payload.
const (
	claimSubject = "sub"
	claimEmail   = "email"
	claimName    = "name"
	claimOrgID   = "org_id"
)

// Namespaced claim suffixes. The identity provider prefixes tenant-custom
// claims with a URI-like namespace, e.g. "https://tably.app/role".
const (
	nsClaimOrgID     = "org_id"
	nsClaimRole      = "role"
	nsClaimBranchIDs = "branch_ids"
	nsClaimEmail     = "email"
	nsClaimName      = "name"
)

// ClaimsConfig holds the tenant claim namespace. Validated once at startup
// instead of re-deriving claim keys per request.
type ClaimsConfig struct {
	// Namespace is the URI-like prefix for tenant-custom claims,
	// without a trailing slash.
	Namespace string
}

// Validate checks the namespace is usable as a claim prefix.
func (c ClaimsConfig) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("claims namespace is required")
	}
	if strings.HasSuffix(c.Namespace, "/") {
		return fmt.Errorf("claims namespace must not end with a slash: %q", c.Namespace)
	}
	return nil
}

// Extractor maps a validated token payload into a canonical Identity.
type Extractor struct {
	namespace string
}

// NewExtractor creates an extractor for the configured claim namespace.
func NewExtractor(cfg ClaimsConfig) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid claims config: %w", err)
	}
	return &Extractor{namespace: cfg.Namespace}, nil
}

// Extract builds an Identity from the raw claims of a validated token.
// The subject claim is required; everything else is optional. Standard
// claims are preferred over their namespaced equivalents, and a missing
// organization claim is valid (tenant-creation flow).
func (e *Extractor) Extract(claims map[string]any) (*Identity, error) {
	subject := stringClaim(claims, claimSubject)
	if subject == "" {
		return nil, apperrors.NewAuthenticationError(fmt.Errorf("token has no subject claim"))
	}

	identity := &Identity{
		Subject:   subject,
		Email:     e.preferStandard(claims, claimEmail, nsClaimEmail),
		Name:      e.preferStandard(claims, claimName, nsClaimName),
		OrgID:     e.preferStandard(claims, claimOrgID, nsClaimOrgID),
		BranchIDs: stringSliceClaim(claims, e.key(nsClaimBranchIDs)),
	}
	identity.Role, identity.RoleDefaulted = ParseRole(stringClaim(claims, e.key(nsClaimRole)))

	return identity, nil
}

func (e *Extractor) key(suffix string) string {
	return e.namespace + "/" + suffix
}

func (e *Extractor) preferStandard(claims map[string]any, standard, suffix string) string {
	if v := stringClaim(claims, standard); v != "" {
		return v
	}
	return stringClaim(claims, e.key(suffix))
}

func stringClaim(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceClaim(claims map[string]any, key string) []string {
	raw, ok := claims[key]
	if !ok || raw == nil {
		return nil
	}

	switch vs := raw.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if vs == "" {
			return nil
		}
		return []string{vs}
	default:
		return nil
	}
}
