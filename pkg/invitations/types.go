package invitations

import (
	"time"

	"github.com/tablyhq/tably/pkg/auth"
)

// Status is the lifecycle state of an invitation
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusExpired  Status = "EXPIRED"
	StatusRevoked  Status = "REVOKED"
)

// Invitation is the local mirror of a provider invitation. The provider
// remains the source of truth for delivery; local rows drive acceptance
// matching and the expiry sweep.
type Invitation struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	OrganizationID    int64      `json:"organization_id"`
	BranchID          *int64     `json:"branch_id,omitempty"`
	Role              auth.Role  `json:"role"`
	Status            Status     `json:"status"`
	InvitedBy         *int64     `json:"invited_by,omitempty"`
	Auth0InvitationID string     `json:"auth0_invitation_id,omitempty"`
	// InvitationURL is returned by the provider on creation and handed back
	// to the caller; it is not persisted.
	InvitationURL string     `json:"invitation_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
}

// CreateRequest is the payload for creating an invitation
type CreateRequest struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	BranchID *int64 `json:"branch_id,omitempty"`
}
