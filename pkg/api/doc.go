// Package api is the tenant-facing HTTP API.
//
// # Overview
//
// The server mounts three handler groups under /api/v1, all behind the
// authentication middleware:
//
//   - invitations: create (rate limited), list, revoke
//   - members: list, remove, change role
//   - branches: list, create, update, staff assignment
//
// Handlers stay thin: request decoding, role checks, then delegation to
// pkg/invitations, pkg/users and pkg/orgs. Domain errors map to HTTP status
// codes through httputil.WriteDomainError.
//
// # Related Packages
//
//   - pkg/middleware: authentication and rate limiting applied here
//   - pkg/invitations: invitation lifecycle behind the handlers
//   - pkg/management: provider operations for member mutations
package api
