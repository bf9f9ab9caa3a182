// Package provisioner mirrors authenticated identities into the local
// database on every request.
//
// # Overview
//
// The identity provider is the source of truth for who a user is; the local
// database is the source of truth for what they can do. The Synchronizer
// bridges the two with just-in-time provisioning: each authenticated request
// resolves the token's organization to a local row, upserts the user keyed
// by the provider subject, and accepts any pending invitation addressed to
// the user's email. Acceptance is a conditional status transition, so two
// concurrent first requests from the same new user produce exactly one
// acceptance.
//
// Provisioning failures are wrapped in apperrors.ProvisionError. They are
// reported to the caller for logging but must never fail the request; the
// returned principal is usable either way.
//
// # Usage Example
//
//	sync, err := provisioner.NewSynchronizer(db, logger, metrics)
//	if err != nil {
//		return err
//	}
//	principal, err := sync.Sync(ctx, identity)
//	if err != nil {
//		logger.WithError(err).Warn("provisioning failed")
//	}
//	// principal is valid even when err is non-nil
//
// # Related Packages
//
//   - pkg/auth: Identity and Principal types
//   - pkg/invitations: invitation lifecycle the Synchronizer completes
//   - pkg/middleware: calls Sync from the authentication middleware
package provisioner
