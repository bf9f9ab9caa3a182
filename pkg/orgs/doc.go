// Package orgs manages organizations, branches and branch memberships.
//
// # Overview
//
// An Organization mirrors an Auth0 organization and represents one
// restaurant business. Branches are the physical locations of that
// business. Branch membership links users to the branches they work at
// and is what branch-scoped access checks are evaluated against.
//
// # Usage Example
//
//	store := orgs.NewPostgresStore(db)
//
//	org, err := store.GetOrganizationByAuth0ID(ctx, "org_abc123")
//	if err != nil {
//		return err
//	}
//
//	branches, err := store.ListBranches(ctx, org.ID)
//
// # Related Packages
//
//   - pkg/users: User records referencing organizations
//   - pkg/provisioner: Resolves organizations during identity sync
//   - pkg/guard: Evaluates branch membership for access decisions
package orgs
