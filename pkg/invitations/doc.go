// Package invitations manages the staff invitation lifecycle.
//
// # Overview
//
// Invitations are created at the identity provider first and mirrored
// locally with status PENDING. Acceptance happens implicitly: when the
// invited person first authenticates, provisioning matches their email to
// the pending row and transitions it to ACCEPTED. The remaining states are
// terminal: REVOKED (explicit admin action) and EXPIRED (sweeper or lazy
// expiry after the 7 day TTL).
//
// State transitions are guarded by conditional updates
// (WHERE status = 'PENDING'), so exactly one transition wins under
// concurrency.
//
// # Usage Example
//
//	mgr := invitations.NewManager(store, userStore, orgStore, mgmtClient, roleMap, ttl, logger, metrics)
//
//	inv, err := mgr.Create(ctx, orgID, &inviterID, &invitations.CreateRequest{
//		Email: "chef@example.com",
//		Role:  "CHEF",
//	})
//
// # Related Packages
//
//   - pkg/provisioner: Accepts pending invitations during identity sync
//   - pkg/management: Provider-side invitation calls
package invitations
