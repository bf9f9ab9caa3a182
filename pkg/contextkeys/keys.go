// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/tablyhq/tably/pkg/contextkeys"
//   ctx = contextkeys.WithPrincipal(ctx, principal)
//   principal := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: middleware.Auth (pkg/middleware/auth.go)
	// Required by: all guarded API endpoints, branch guard middleware
	// Type: *auth.Principal
	PrincipalKey Key = "principal"

	// BranchIDKey contains the resolved branch id string for the request
	// Set by: middleware.BranchGuard (pkg/middleware/branch.go)
	// Required by: branch-scoped handlers
	// Type: string
	BranchIDKey Key = "branch_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// SubjectKey contains the external identity-provider subject id
	// Set by: middleware.Auth after token validation
	// Used by: Logger, rate limiting keys
	// Type: string
	SubjectKey Key = "subject"
)

// Helper functions for type-safe context operations

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithBranchID adds the resolved branch id to the context
func WithBranchID(ctx context.Context, branchID string) context.Context {
	return context.WithValue(ctx, BranchIDKey, branchID)
}

// BranchID retrieves the resolved branch id from the context
func BranchID(ctx context.Context) string {
	if v, ok := ctx.Value(BranchIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSubject adds the token subject to the context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, SubjectKey, subject)
}

// Subject retrieves the token subject from the context
func Subject(ctx context.Context) string {
	if v, ok := ctx.Value(SubjectKey).(string); ok {
		return v
	}
	return ""
}
