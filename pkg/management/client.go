package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/tablyhq/tably/pkg/apperrors"
	"github.com/tablyhq/tably/pkg/observability"
)

// Config holds Auth0 Management API credentials and endpoints
type Config struct {
	// Domain is the tenant base URL, e.g. https://tably.us.auth0.com/
	Domain       string
	ClientID     string
	ClientSecret string
	// Audience defaults to <domain>/api/v2/
	Audience string
	// InviterName appears in invitation emails
	InviterName string
	// AppClientID is the application invitations are bound to,
	// defaults to ClientID
	AppClientID string
}

// Organization is a provider-side organization
type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// Member is a provider-side organization member
type Member struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Role is a provider-side role
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Client is a thin transport over the Auth0 Management API. Requests are
// authenticated with service credentials via the client credentials grant.
type Client struct {
	http    *http.Client
	baseURL string
	cfg     Config
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewClient creates a Client. ctx bounds the lifetime of the token source.
func NewClient(ctx context.Context, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Client {
	issuer := strings.TrimSuffix(cfg.Domain, "/")
	audience := cfg.Audience
	if audience == "" {
		audience = issuer + "/api/v2/"
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     issuer + "/oauth/token",
		EndpointParams: url.Values{
			"audience": {audience},
		},
	}

	httpClient := cc.Client(ctx)
	httpClient.Timeout = 10 * time.Second

	return &Client{
		http:    httpClient,
		baseURL: issuer + "/api/v2",
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// CreateOrganization creates a provider organization
func (c *Client) CreateOrganization(ctx context.Context, name, displayName string) (*Organization, error) {
	body := map[string]string{"name": name, "display_name": displayName}
	org := &Organization{}
	if err := c.do(ctx, "create_organization", http.MethodPost, "/organizations", body, org); err != nil {
		return nil, err
	}
	return org, nil
}

// AddMember adds a user to an organization
func (c *Client) AddMember(ctx context.Context, orgID, userID string) error {
	body := map[string][]string{"members": {userID}}
	path := fmt.Sprintf("/organizations/%s/members", orgID)
	return c.do(ctx, "add_member", http.MethodPost, path, body, nil)
}

// RemoveMember removes a user from an organization
func (c *Client) RemoveMember(ctx context.Context, orgID, userID string) error {
	body := map[string][]string{"members": {userID}}
	path := fmt.Sprintf("/organizations/%s/members", orgID)
	return c.do(ctx, "remove_member", http.MethodDelete, path, body, nil)
}

// AssignRole grants a role to an organization member
func (c *Client) AssignRole(ctx context.Context, orgID, userID, roleID string) error {
	body := map[string][]string{"roles": {roleID}}
	path := fmt.Sprintf("/organizations/%s/members/%s/roles", orgID, userID)
	return c.do(ctx, "assign_role", http.MethodPost, path, body, nil)
}

// ListMemberRoles lists the roles a member holds within an organization
func (c *Client) ListMemberRoles(ctx context.Context, orgID, userID string) ([]Role, error) {
	var roles []Role
	path := fmt.Sprintf("/organizations/%s/members/%s/roles", orgID, userID)
	if err := c.do(ctx, "list_member_roles", http.MethodGet, path, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// UpdateRole replaces a member's organization roles with the given role.
// The provider has no atomic replace, so current roles are listed and
// removed before the new role is assigned.
func (c *Client) UpdateRole(ctx context.Context, orgID, userID, roleID string) error {
	current, err := c.ListMemberRoles(ctx, orgID, userID)
	if err != nil {
		return err
	}

	if len(current) > 0 {
		ids := make([]string, len(current))
		for i, r := range current {
			ids[i] = r.ID
		}
		body := map[string][]string{"roles": ids}
		path := fmt.Sprintf("/organizations/%s/members/%s/roles", orgID, userID)
		if err := c.do(ctx, "remove_roles", http.MethodDelete, path, body, nil); err != nil {
			return err
		}
	}

	return c.AssignRole(ctx, orgID, userID, roleID)
}

// CreateInvitation creates an organization invitation and returns the
// provider's invitation id and the invitation URL the invitee receives.
func (c *Client) CreateInvitation(ctx context.Context, orgID, email, roleID string) (string, string, error) {
	inviter := c.cfg.InviterName
	if inviter == "" {
		inviter = "Tably"
	}
	appClientID := c.cfg.AppClientID
	if appClientID == "" {
		appClientID = c.cfg.ClientID
	}

	body := map[string]interface{}{
		"inviter":               map[string]string{"name": inviter},
		"invitee":               map[string]string{"email": email},
		"client_id":             appClientID,
		"roles":                 []string{roleID},
		"send_invitation_email": true,
	}

	var result struct {
		ID            string `json:"id"`
		InvitationURL string `json:"invitation_url"`
	}
	path := fmt.Sprintf("/organizations/%s/invitations", orgID)
	if err := c.do(ctx, "create_invitation", http.MethodPost, path, body, &result); err != nil {
		return "", "", err
	}
	return result.ID, result.InvitationURL, nil
}

// DeleteInvitation deletes a pending organization invitation
func (c *Client) DeleteInvitation(ctx context.Context, orgID, invitationID string) error {
	path := fmt.Sprintf("/organizations/%s/invitations/%s", orgID, invitationID)
	return c.do(ctx, "delete_invitation", http.MethodDelete, path, nil, nil)
}

// ListOrganizationsForUser lists the organizations a user belongs to
func (c *Client) ListOrganizationsForUser(ctx context.Context, userID string) ([]Organization, error) {
	var result []Organization
	path := fmt.Sprintf("/users/%s/organizations", url.PathEscape(userID))
	if err := c.do(ctx, "list_user_organizations", http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListMembers lists the members of an organization
func (c *Client) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	var result []Member
	path := fmt.Sprintf("/organizations/%s/members", orgID)
	if err := c.do(ctx, "list_members", http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListRoles lists all roles defined on the tenant
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var result []Role
	if err := c.do(ctx, "list_roles", http.MethodGet, "/roles", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// do executes one Management API request. Non-2xx responses map to
// ExternalServiceError; provider response bodies are logged at debug and
// never included in the returned error.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(operation, "error", start)
		return apperrors.NewExternalServiceError("auth0", err)
	}
	defer resp.Body.Close()

	c.observe(operation, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.WithFields(map[string]interface{}{
			"operation": operation,
			"status":    resp.StatusCode,
			"body":      string(respBody),
		}).Debug("management API request failed")
		return apperrors.NewExternalServiceError("auth0",
			fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewExternalServiceError("auth0",
				fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return nil
}

func (c *Client) observe(operation, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ManagementRequestsTotal.WithLabelValues(operation, status).Inc()
	c.metrics.ManagementRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
