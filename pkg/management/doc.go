// Package management is the boundary to the Auth0 Management API.
//
// # Overview
//
// Client wraps the small subset of Management API operations the backend
// needs: organization lifecycle, membership, role assignment and
// invitations. Requests authenticate with service credentials through the
// client credentials grant; tokens are fetched and refreshed by the oauth2
// transport.
//
// Provider failures map to ExternalServiceError. Provider response bodies
// are logged at debug level only and never reach API clients.
//
// RoleMap resolves domain roles (OWNER, MANAGER, WAITER, CHEF) to the
// tenant's role ids from a JSON file and hot-reloads it on change.
//
// # Usage Example
//
//	client := management.NewClient(ctx, management.Config{
//		Domain:       cfg.Auth.IssuerURL,
//		ClientID:     cfg.Auth.ManagementClientID,
//		ClientSecret: cfg.Auth.ManagementClientSecret,
//	}, logger, metrics)
//
//	roleMap, err := management.NewRoleMap(cfg.Auth.RoleMapPath, logger)
//	if err != nil {
//		return err
//	}
//	if err := roleMap.Watch(ctx); err != nil {
//		return err
//	}
//
// # Related Packages
//
//   - pkg/invitations: Creates and revokes invitations through Client
//   - pkg/api: Member management handlers delegate to Client
package management
