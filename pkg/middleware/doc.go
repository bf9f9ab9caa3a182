// Package middleware provides the HTTP middleware chain for the API server.
//
// # Overview
//
// AuthMiddleware runs first: bearer extraction, token validation, claim
// extraction, then best-effort provisioning. It attaches the resolved
// principal to the request context. All authentication failures produce the
// same generic 401 body.
//
// BranchGuard protects branch-scoped routes. It resolves the branch id
// (path over query over the X-Branch-Id header) and defers the decision to
// pkg/guard.
//
// RateLimitMiddleware applies a fixed-window limit keyed by the
// authenticated subject, with RedisLimiter sharing the window across
// instances and LocalLimiter as the single-instance fallback. Limiter
// backend errors fail open.
//
// # Usage Example
//
//	authMW := middleware.NewAuthMiddleware(validator, extractor, sync, logger, metrics)
//	limiter := middleware.NewRedisLimiter(redisClient, nil, "ratelimit:invitations")
//	limitMW := middleware.NewRateLimitMiddleware(limiter, nil, logger)
//
//	router.Use(authMW.Handler)
//	invitations.Use(limitMW.Handler, middleware.BranchGuard(g))
//
// # Related Packages
//
//   - pkg/auth: token validation and claim extraction
//   - pkg/provisioner: just-in-time provisioning called during auth
//   - pkg/guard: branch access decisions
package middleware
