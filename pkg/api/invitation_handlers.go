package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/guard"
	"github.com/tablyhq/tably/pkg/httputil"
	"github.com/tablyhq/tably/pkg/invitations"
	"github.com/tablyhq/tably/pkg/middleware"
	"github.com/tablyhq/tably/pkg/observability"
)

// InvitationHandlers handles invitation HTTP requests
type InvitationHandlers struct {
	manager *invitations.Manager
	guard   *guard.Guard
	logger  *observability.Logger
}

// NewInvitationHandlers creates a new InvitationHandlers
func NewInvitationHandlers(manager *invitations.Manager, g *guard.Guard, logger *observability.Logger) *InvitationHandlers {
	return &InvitationHandlers{
		manager: manager,
		guard:   g,
		logger:  logger,
	}
}

// RegisterRoutes registers invitation routes. The rate limit middleware, when
// given, applies to the create command only.
func (h *InvitationHandlers) RegisterRoutes(router *mux.Router, rateLimit Middleware) {
	create := http.Handler(http.HandlerFunc(h.Create))
	if rateLimit != nil {
		create = rateLimit(create)
	}
	router.Handle("/invitations", create).Methods("POST")
	router.HandleFunc("/invitations", h.List).Methods("GET")
	router.HandleFunc("/invitations/{id}", h.Revoke).Methods("DELETE")
}

// Create invites a staff member into the caller's organization.
func (h *InvitationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireOrganization(w, principal) {
		return
	}

	var req invitations.CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	// Unknown roles skip the guard and fall through to the manager, which
	// rejects them as a validation error.
	if role := auth.Role(req.Role); role.Valid() {
		if err := h.guard.CheckInvite(principal, role); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}
	}

	var invitedBy *int64
	if principal.UserID != 0 {
		invitedBy = &principal.UserID
	}

	invitation, err := h.manager.Create(r.Context(), principal.OrganizationID, invitedBy, &req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, invitation)
}

// List returns the organization's invitations, newest first.
func (h *InvitationHandlers) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireOrganization(w, principal) {
		return
	}

	list, err := h.manager.List(r.Context(), principal.OrganizationID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// Revoke cancels a pending invitation.
func (h *InvitationHandlers) Revoke(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireOrganization(w, principal) {
		return
	}

	// Only roles that can invite can revoke.
	if principal.Role != auth.RoleOwner && principal.Role != auth.RoleManager {
		httputil.WriteForbidden(w, "role may not revoke invitations")
		return
	}

	id, ok := httputil.PathInt64(w, r, "id")
	if !ok {
		return
	}

	if err := h.manager.Revoke(r.Context(), principal.OrganizationID, id); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func requirePrincipal(w http.ResponseWriter, r *http.Request) (principal *auth.Principal, ok bool) {
	principal = middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "invalid token")
		return nil, false
	}
	return principal, true
}

// requireOrganization rejects callers whose token carried no organization or
// whose organization could not be provisioned locally.
func requireOrganization(w http.ResponseWriter, principal *auth.Principal) bool {
	if principal.OrganizationID == 0 {
		httputil.WriteForbidden(w, "organization context required")
		return false
	}
	return true
}
