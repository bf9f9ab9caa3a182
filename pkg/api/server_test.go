package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/tablyhq/tably/pkg/apperrors"
	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/contextkeys"
	"github.com/tablyhq/tably/pkg/guard"
	"github.com/tablyhq/tably/pkg/invitations"
	"github.com/tablyhq/tably/pkg/observability"
	"github.com/tablyhq/tably/pkg/orgs"
	"github.com/tablyhq/tably/pkg/users"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// fakeInvitationStore is an in-memory invitations.Store.
type fakeInvitationStore struct {
	nextID int64
	byID   map[int64]*invitations.Invitation
}

func newFakeInvitationStore() *fakeInvitationStore {
	return &fakeInvitationStore{nextID: 1, byID: make(map[int64]*invitations.Invitation)}
}

func (s *fakeInvitationStore) Create(_ context.Context, inv *invitations.Invitation) error {
	inv.ID = s.nextID
	s.nextID++
	if inv.Status == "" {
		inv.Status = invitations.StatusPending
	}
	s.byID[inv.ID] = inv
	return nil
}

func (s *fakeInvitationStore) GetByID(_ context.Context, id int64) (*invitations.Invitation, error) {
	inv, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("invitation")
	}
	return inv, nil
}

func (s *fakeInvitationStore) FindPending(_ context.Context, email string, orgID int64) (*invitations.Invitation, error) {
	for _, inv := range s.byID {
		if inv.Email == email && inv.OrganizationID == orgID && inv.Status == invitations.StatusPending {
			return inv, nil
		}
	}
	return nil, apperrors.NewNotFoundError("invitation")
}

func (s *fakeInvitationStore) ListByOrganization(_ context.Context, orgID int64) ([]*invitations.Invitation, error) {
	var out []*invitations.Invitation
	for _, inv := range s.byID {
		if inv.OrganizationID == orgID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *fakeInvitationStore) Transition(_ context.Context, id int64, from, to invitations.Status) (bool, error) {
	inv, ok := s.byID[id]
	if !ok || inv.Status != from {
		return false, nil
	}
	inv.Status = to
	return true, nil
}

func (s *fakeInvitationStore) MarkExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// fakeUserStore is an in-memory users.Store.
type fakeUserStore struct {
	byID    map[int64]*users.User
	deleted []int64
	roleSet map[int64]string
}

func newFakeUserStore(seed ...*users.User) *fakeUserStore {
	s := &fakeUserStore{byID: make(map[int64]*users.User), roleSet: make(map[int64]string)}
	for _, u := range seed {
		s.byID[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) Upsert(_ context.Context, user *users.User) error {
	s.byID[user.ID] = user
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, userID int64) (*users.User, error) {
	u, ok := s.byID[userID]
	if !ok {
		return nil, apperrors.NewNotFoundError("user")
	}
	return u, nil
}

func (s *fakeUserStore) GetByAuth0ID(_ context.Context, auth0ID string) (*users.User, error) {
	for _, u := range s.byID {
		if u.Auth0ID == auth0ID {
			return u, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user")
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*users.User, error) {
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user")
}

func (s *fakeUserStore) ListByOrganization(_ context.Context, orgID int64) ([]*users.User, error) {
	var out []*users.User
	for _, u := range s.byID {
		if u.OrganizationID != nil && *u.OrganizationID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeUserStore) UpdateRole(_ context.Context, userID int64, role string) error {
	if _, ok := s.byID[userID]; !ok {
		return apperrors.NewNotFoundError("user")
	}
	s.roleSet[userID] = role
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, userID int64) error {
	if _, ok := s.byID[userID]; !ok {
		return apperrors.NewNotFoundError("user")
	}
	delete(s.byID, userID)
	s.deleted = append(s.deleted, userID)
	return nil
}

// fakeOrgStore is an in-memory orgs.Store.
type fakeOrgStore struct {
	org        *orgs.Organization
	branches   map[int64]*orgs.Branch
	nextBranch int64
	assigned   map[[2]int64]bool
}

func newFakeOrgStore(org *orgs.Organization) *fakeOrgStore {
	return &fakeOrgStore{
		org:        org,
		branches:   make(map[int64]*orgs.Branch),
		nextBranch: 1,
		assigned:   make(map[[2]int64]bool),
	}
}

func (s *fakeOrgStore) UpsertOrganization(context.Context, *orgs.Organization) error { return nil }

func (s *fakeOrgStore) GetOrganization(_ context.Context, id int64) (*orgs.Organization, error) {
	if s.org == nil || s.org.ID != id {
		return nil, apperrors.NewNotFoundError("organization")
	}
	return s.org, nil
}

func (s *fakeOrgStore) GetOrganizationByAuth0ID(_ context.Context, auth0OrgID string) (*orgs.Organization, error) {
	if s.org == nil || s.org.Auth0OrgID != auth0OrgID {
		return nil, apperrors.NewNotFoundError("organization")
	}
	return s.org, nil
}

func (s *fakeOrgStore) CreateBranch(_ context.Context, branch *orgs.Branch) error {
	for _, b := range s.branches {
		if b.OrganizationID == branch.OrganizationID && b.Name == branch.Name {
			return apperrors.NewConflictError("branch with this name already exists")
		}
	}
	branch.ID = s.nextBranch
	s.nextBranch++
	s.branches[branch.ID] = branch
	return nil
}

func (s *fakeOrgStore) UpdateBranch(_ context.Context, orgID, branchID int64, updates *orgs.UpdateBranchRequest) error {
	b, ok := s.branches[branchID]
	if !ok || b.OrganizationID != orgID {
		return apperrors.NewNotFoundError("branch")
	}
	if updates.Name != nil {
		b.Name = *updates.Name
	}
	if updates.Address != nil {
		b.Address = *updates.Address
	}
	return nil
}

func (s *fakeOrgStore) GetBranch(_ context.Context, id int64) (*orgs.Branch, error) {
	b, ok := s.branches[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("branch")
	}
	return b, nil
}

func (s *fakeOrgStore) ListBranches(_ context.Context, orgID int64) ([]*orgs.Branch, error) {
	var out []*orgs.Branch
	for _, b := range s.branches {
		if b.OrganizationID == orgID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeOrgStore) AssignUserToBranch(_ context.Context, userID, branchID int64) error {
	s.assigned[[2]int64{userID, branchID}] = true
	return nil
}

func (s *fakeOrgStore) RemoveUserFromBranch(_ context.Context, userID, branchID int64) error {
	key := [2]int64{userID, branchID}
	if !s.assigned[key] {
		return apperrors.NewNotFoundError("branch membership")
	}
	delete(s.assigned, key)
	return nil
}

func (s *fakeOrgStore) ListUserBranchIDs(context.Context, int64) ([]int64, error) {
	return nil, nil
}

// fakeManagement satisfies both the api and invitations management
// interfaces.
type fakeManagement struct {
	removed      [][2]string
	roleUpdates  [][3]string
	invited      []string
	deletedInvs  []string
	err          error
	invitationID string
}

func (f *fakeManagement) RemoveMember(_ context.Context, orgID, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, [2]string{orgID, userID})
	return nil
}

func (f *fakeManagement) UpdateRole(_ context.Context, orgID, userID, roleID string) error {
	if f.err != nil {
		return f.err
	}
	f.roleUpdates = append(f.roleUpdates, [3]string{orgID, userID, roleID})
	return nil
}

func (f *fakeManagement) CreateInvitation(_ context.Context, orgID, email, roleID string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.invited = append(f.invited, email)
	if f.invitationID == "" {
		return "inv_abc", "https://id.tably.test/invite/inv_abc", nil
	}
	return f.invitationID, "https://id.tably.test/invite/" + f.invitationID, nil
}

func (f *fakeManagement) DeleteInvitation(_ context.Context, orgID, invitationID string) error {
	if f.err != nil {
		return f.err
	}
	f.deletedInvs = append(f.deletedInvs, invitationID)
	return nil
}

type fakeRoleMapper struct{}

func (fakeRoleMapper) RoleID(role auth.Role) (string, error) {
	if !role.Valid() {
		return "", apperrors.NewValidationError("role", "role has no provider mapping")
	}
	return "rol_" + string(role), nil
}

// serverFixture wires a Server with fakes and a principal-injecting auth
// middleware standing in for the real one.
type serverFixture struct {
	server      *Server
	invStore    *fakeInvitationStore
	userStore   *fakeUserStore
	orgStore    *fakeOrgStore
	mgmt        *fakeManagement
	principal   *auth.Principal
	rateLimited atomic.Bool
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		invStore: newFakeInvitationStore(),
		userStore: newFakeUserStore(&users.User{
			ID: 11, Auth0ID: "auth0|owner", Email: "owner@harbor.test",
			Role: auth.RoleOwner, OrganizationID: ptrInt64(7),
		}),
		orgStore: newFakeOrgStore(&orgs.Organization{
			ID: 7, Auth0OrgID: "org_abc", Name: "Harbor Kitchen",
		}),
		mgmt: &fakeManagement{},
	}

	logger := testLogger()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	manager := invitations.NewManager(f.invStore, f.userStore, f.orgStore,
		f.mgmt, fakeRoleMapper{}, 0, logger, metrics)

	authMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if f.principal != nil {
				r = r.WithContext(contextkeys.WithPrincipal(r.Context(), f.principal))
			}
			next.ServeHTTP(w, r)
		})
	}
	rateLimitMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if f.rateLimited.Load() {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	f.server = NewServer(Config{
		Invitations: manager,
		Users:       f.userStore,
		Orgs:        f.orgStore,
		Management:  f.mgmt,
		Roles:       fakeRoleMapper{},
		Guard:       guard.NewGuard(logger, metrics),
		Auth:        authMW,
		RateLimit:   rateLimitMW,
		Logger:      logger,
	})
	return f
}

func (f *serverFixture) asOwner() *serverFixture {
	f.principal = &auth.Principal{
		Identity:       auth.Identity{Subject: "auth0|owner", Email: "owner@harbor.test", OrgID: "org_abc", Role: auth.RoleOwner},
		UserID:         11,
		OrganizationID: 7,
	}
	return f
}

func (f *serverFixture) asManager(branches ...string) *serverFixture {
	f.principal = &auth.Principal{
		Identity:       auth.Identity{Subject: "auth0|mgr", Email: "mgr@harbor.test", OrgID: "org_abc", Role: auth.RoleManager, BranchIDs: branches},
		UserID:         12,
		OrganizationID: 7,
	}
	return f
}

func (f *serverFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func ptrInt64(v int64) *int64 { return &v }

func TestServer_UnknownRoute(t *testing.T) {
	f := newServerFixture().asOwner()
	rec := f.do(http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RateLimitOnlyOnInvitationCreate(t *testing.T) {
	f := newServerFixture().asOwner()
	f.rateLimited.Store(true)

	rec := f.do(http.MethodPost, "/api/v1/invitations", `{"email":"a@b.test","role":"CHEF"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/invitations", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
