package invitations

import (
	"context"
	"fmt"
	"time"

	"github.com/tablyhq/tably/pkg/apperrors"
	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/observability"
	"github.com/tablyhq/tably/pkg/orgs"
	"github.com/tablyhq/tably/pkg/users"
)

// ManagementClient is the provider-side invitation surface the manager
// depends on.
type ManagementClient interface {
	CreateInvitation(ctx context.Context, auth0OrgID, email, auth0RoleID string) (string, string, error)
	DeleteInvitation(ctx context.Context, auth0OrgID, auth0InvitationID string) error
}

// RoleMapper resolves a domain role to the provider's role id
type RoleMapper interface {
	RoleID(role auth.Role) (string, error)
}

// Manager coordinates invitation lifecycle between the identity provider
// and the local mirror. The provider call happens first; a provider failure
// leaves no local row behind.
type Manager struct {
	store   Store
	users   users.Store
	orgs    orgs.Store
	mgmt    ManagementClient
	roles   RoleMapper
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewManager creates an invitation Manager
func NewManager(store Store, userStore users.Store, orgStore orgs.Store, mgmt ManagementClient, roles RoleMapper, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{
		store:   store,
		users:   userStore,
		orgs:    orgStore,
		mgmt:    mgmt,
		roles:   roles,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// Create validates the request, creates the invitation at the provider and
// mirrors it locally with status PENDING.
func (m *Manager) Create(ctx context.Context, orgID int64, invitedBy *int64, req *CreateRequest) (*Invitation, error) {
	if req.Email == "" {
		return nil, apperrors.NewValidationError("email", "email is required")
	}
	role := auth.Role(req.Role)
	if !role.Valid() {
		return nil, apperrors.NewValidationError("role", fmt.Sprintf("unknown role %q", req.Role))
	}

	// An email that already belongs to a user cannot be invited again
	existing, err := m.users.GetByEmail(ctx, req.Email)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("user with this email already exists")
	}

	if _, err := m.store.FindPending(ctx, req.Email, orgID); err == nil {
		return nil, apperrors.NewConflictError("a pending invitation already exists for this email")
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	roleID, err := m.roles.RoleID(role)
	if err != nil {
		return nil, err
	}

	org, err := m.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	auth0InvitationID, invitationURL, err := m.mgmt.CreateInvitation(ctx, org.Auth0OrgID, req.Email, roleID)
	if err != nil {
		return nil, err
	}

	inv := &Invitation{
		Email:             req.Email,
		OrganizationID:    orgID,
		BranchID:          req.BranchID,
		Role:              role,
		Status:            StatusPending,
		InvitedBy:         invitedBy,
		Auth0InvitationID: auth0InvitationID,
		InvitationURL:     invitationURL,
		ExpiresAt:         time.Now().Add(m.ttl),
	}
	if err := m.store.Create(ctx, inv); err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.InvitationsCreatedTotal.Inc()
	}
	m.logger.WithFields(map[string]interface{}{
		"invitation_id":   inv.ID,
		"organization_id": orgID,
		"role":            string(role),
	}).Info("invitation created")

	return inv, nil
}

// Revoke deletes the invitation at the provider and transitions the local
// row PENDING to REVOKED. Only pending invitations can be revoked.
func (m *Manager) Revoke(ctx context.Context, orgID, invitationID int64) error {
	inv, err := m.store.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.OrganizationID != orgID {
		return apperrors.NewNotFoundError("invitation")
	}
	if inv.Status != StatusPending {
		return apperrors.NewConflictError("invitation is not pending")
	}

	org, err := m.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}

	if inv.Auth0InvitationID != "" {
		if err := m.mgmt.DeleteInvitation(ctx, org.Auth0OrgID, inv.Auth0InvitationID); err != nil {
			return err
		}
	}

	ok, err := m.store.Transition(ctx, invitationID, StatusPending, StatusRevoked)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewConflictError("invitation is not pending")
	}

	if m.metrics != nil {
		m.metrics.InvitationsRevokedTotal.Inc()
	}
	m.logger.WithFields(map[string]interface{}{
		"invitation_id":   invitationID,
		"organization_id": orgID,
	}).Info("invitation revoked")

	return nil
}

// List returns all invitations for an organization
func (m *Manager) List(ctx context.Context, orgID int64) ([]*Invitation, error) {
	return m.store.ListByOrganization(ctx, orgID)
}
