package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/httputil"
	"github.com/tablyhq/tably/pkg/observability"
	"github.com/tablyhq/tably/pkg/orgs"
)

// BranchHandlers handles branch HTTP requests
type BranchHandlers struct {
	orgs   orgs.Store
	logger *observability.Logger
}

// NewBranchHandlers creates a new BranchHandlers
func NewBranchHandlers(orgStore orgs.Store, logger *observability.Logger) *BranchHandlers {
	return &BranchHandlers{orgs: orgStore, logger: logger}
}

// RegisterRoutes registers branch routes
func (h *BranchHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/branches", h.List).Methods("GET")
	router.HandleFunc("/branches", h.Create).Methods("POST")
	router.HandleFunc("/branches/{branch_id}", h.Update).Methods("PUT")
	router.HandleFunc("/branches/{branch_id}/staff/{user_id}", h.AssignStaff).Methods("PUT")
	router.HandleFunc("/branches/{branch_id}/staff/{user_id}", h.RemoveStaff).Methods("DELETE")
}

// List returns the organization's branches.
func (h *BranchHandlers) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireOrganization(w, principal) {
		return
	}

	branches, err := h.orgs.ListBranches(r.Context(), principal.OrganizationID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, branches)
}

// Create adds a branch to the organization. Owners only.
func (h *BranchHandlers) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireManagingPrincipal(w, r, auth.RoleOwner)
	if !ok {
		return
	}

	var req orgs.CreateBranchRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "branch name") {
		return
	}

	branch := &orgs.Branch{
		OrganizationID: principal.OrganizationID,
		Name:           req.Name,
		Address:        req.Address,
	}
	if err := h.orgs.CreateBranch(r.Context(), branch); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, branch)
}

// Update changes a branch's name or address. Owners and managers.
func (h *BranchHandlers) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireManagingPrincipal(w, r, auth.RoleOwner, auth.RoleManager)
	if !ok {
		return
	}

	branchID, ok := httputil.PathInt64(w, r, "branch_id")
	if !ok {
		return
	}

	// Managers can only touch branches they belong to.
	if principal.Role == auth.RoleManager &&
		!principal.MemberOfBranch(strconv.FormatInt(branchID, 10)) {
		httputil.WriteForbidden(w, "not a member of this branch")
		return
	}

	var req orgs.UpdateBranchRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.orgs.UpdateBranch(r.Context(), principal.OrganizationID, branchID, &req); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	branch, err := h.orgs.GetBranch(r.Context(), branchID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, branch)
}

// AssignStaff adds a user to a branch. Owners only.
func (h *BranchHandlers) AssignStaff(w http.ResponseWriter, r *http.Request) {
	_, branchID, userID, ok := h.staffMutation(w, r)
	if !ok {
		return
	}

	if err := h.orgs.AssignUserToBranch(r.Context(), userID, branchID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// RemoveStaff removes a user from a branch. Owners only.
func (h *BranchHandlers) RemoveStaff(w http.ResponseWriter, r *http.Request) {
	_, branchID, userID, ok := h.staffMutation(w, r)
	if !ok {
		return
	}

	if err := h.orgs.RemoveUserFromBranch(r.Context(), userID, branchID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BranchHandlers) staffMutation(w http.ResponseWriter, r *http.Request) (principal *auth.Principal, branchID, userID int64, ok bool) {
	principal, pok := requireManagingPrincipal(w, r, auth.RoleOwner)
	if !pok {
		return nil, 0, 0, false
	}

	branchID, bok := httputil.PathInt64(w, r, "branch_id")
	if !bok {
		return nil, 0, 0, false
	}
	userID, uok := httputil.PathInt64(w, r, "user_id")
	if !uok {
		return nil, 0, 0, false
	}

	// The branch must belong to the caller's organization.
	branch, err := h.orgs.GetBranch(r.Context(), branchID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return nil, 0, 0, false
	}
	if branch.OrganizationID != principal.OrganizationID {
		httputil.WriteNotFoundError(w, "branch not found")
		return nil, 0, 0, false
	}

	return principal, branchID, userID, true
}

func requireManagingPrincipal(w http.ResponseWriter, r *http.Request, allowed ...auth.Role) (*auth.Principal, bool) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return nil, false
	}
	if !requireOrganization(w, principal) {
		return nil, false
	}

	for _, role := range allowed {
		if principal.Role == role {
			return principal, true
		}
	}
	httputil.WriteForbidden(w, "insufficient role")
	return nil, false
}
