package orgs

import "time"

// Organization represents a restaurant business. Each organization mirrors
// an Auth0 organization and owns one or more branches.
type Organization struct {
	ID         int64     `json:"id"`
	Auth0OrgID string    `json:"auth0_org_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Branch represents a physical restaurant location within an organization.
type Branch struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateBranchRequest is the payload for creating a branch
type CreateBranchRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// UpdateBranchRequest is the payload for updating a branch.
// Nil fields are left unchanged.
type UpdateBranchRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
}
