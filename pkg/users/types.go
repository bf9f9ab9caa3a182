package users

import (
	"time"

	"github.com/tablyhq/tably/pkg/auth"
)

// User is the local mirror of an identity-provider user. Rows are created
// and refreshed by just-in-time provisioning on first authenticated request.
type User struct {
	ID             int64     `json:"id"`
	Auth0ID        string    `json:"auth0_id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           auth.Role `json:"role"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
