package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/httputil"
	"github.com/tablyhq/tably/pkg/observability"
	"github.com/tablyhq/tably/pkg/orgs"
	"github.com/tablyhq/tably/pkg/users"
)

// MemberHandlers handles organization member HTTP requests. Removal and
// role changes write to the identity provider first, then mirror the result
// locally.
type MemberHandlers struct {
	users  users.Store
	orgs   orgs.Store
	mgmt   ManagementClient
	roles  RoleMapper
	logger *observability.Logger
}

// NewMemberHandlers creates a new MemberHandlers
func NewMemberHandlers(userStore users.Store, orgStore orgs.Store, mgmt ManagementClient, roles RoleMapper, logger *observability.Logger) *MemberHandlers {
	return &MemberHandlers{
		users:  userStore,
		orgs:   orgStore,
		mgmt:   mgmt,
		roles:  roles,
		logger: logger,
	}
}

// RegisterRoutes registers member routes
func (h *MemberHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/members", h.List).Methods("GET")
	router.HandleFunc("/members/{user_id}", h.Remove).Methods("DELETE")
	router.HandleFunc("/members/{user_id}/role", h.UpdateRole).Methods("PUT")
}

// List returns the organization's members.
func (h *MemberHandlers) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireOrganization(w, principal) {
		return
	}

	members, err := h.users.ListByOrganization(r.Context(), principal.OrganizationID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, members)
}

// Remove deletes a member from the organization, provider first.
func (h *MemberHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	principal, user, ok := h.memberForWrite(w, r)
	if !ok {
		return
	}

	if user.Auth0ID == principal.Subject {
		httputil.WriteConflict(w, "cannot remove yourself")
		return
	}

	org, err := h.orgs.GetOrganization(r.Context(), principal.OrganizationID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.mgmt.RemoveMember(r.Context(), org.Auth0OrgID, user.Auth0ID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.users.Delete(r.Context(), user.ID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"user_id":    user.ID,
		"removed_by": principal.Subject,
	}).Info("member removed")
	httputil.WriteNoContent(w)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole replaces a member's role, provider first so the next token
// refresh carries the new role.
func (h *MemberHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	principal, user, ok := h.memberForWrite(w, r)
	if !ok {
		return
	}

	var req updateRoleRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	role := auth.Role(req.Role)
	if !role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	roleID, err := h.roles.RoleID(role)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	org, err := h.orgs.GetOrganization(r.Context(), principal.OrganizationID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.mgmt.UpdateRole(r.Context(), org.Auth0OrgID, user.Auth0ID, roleID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.users.UpdateRole(r.Context(), user.ID, string(role)); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	user.Role = role
	httputil.WriteSuccess(w, user)
}

// memberForWrite runs the shared checks for member mutations: the caller
// must be an owner and the target must belong to the caller's organization.
func (h *MemberHandlers) memberForWrite(w http.ResponseWriter, r *http.Request) (*auth.Principal, *users.User, bool) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return nil, nil, false
	}
	if !requireOrganization(w, principal) {
		return nil, nil, false
	}

	if principal.Role != auth.RoleOwner {
		httputil.WriteForbidden(w, "only owners may manage members")
		return nil, nil, false
	}

	userID, idOK := httputil.PathInt64(w, r, "user_id")
	if !idOK {
		return nil, nil, false
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return nil, nil, false
	}
	if user.OrganizationID == nil || *user.OrganizationID != principal.OrganizationID {
		httputil.WriteNotFoundError(w, "user not found")
		return nil, nil, false
	}

	return principal, user, true
}
