package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/guard"
	"github.com/tablyhq/tably/pkg/httputil"
	"github.com/tablyhq/tably/pkg/invitations"
	"github.com/tablyhq/tably/pkg/observability"
	"github.com/tablyhq/tably/pkg/orgs"
	"github.com/tablyhq/tably/pkg/users"
)

// ManagementClient is the slice of the identity provider's management API
// the member handlers need.
type ManagementClient interface {
	RemoveMember(ctx context.Context, orgID, userID string) error
	UpdateRole(ctx context.Context, orgID, userID, roleID string) error
}

// RoleMapper resolves a local role to the provider's role id.
type RoleMapper interface {
	RoleID(role auth.Role) (string, error)
}

// Middleware is a standard HTTP middleware function.
type Middleware = mux.MiddlewareFunc

// Config carries the server's dependencies. Auth is applied to every v1
// route; RateLimit only to invitation commands.
type Config struct {
	Invitations *invitations.Manager
	Users       users.Store
	Orgs        orgs.Store
	Management  ManagementClient
	Roles       RoleMapper
	Guard       *guard.Guard
	Auth        Middleware
	RateLimit   Middleware
	Logger      *observability.Logger

	// AllowedOrigins enables CORS when non-empty.
	AllowedOrigins []string
	// MaxBodyBytes caps request body size. Zero applies a 1 MiB default.
	MaxBodyBytes int64
}

// Server is the tenant-facing HTTP API.
type Server struct {
	router *mux.Router
	logger *observability.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: cfg.Logger,
	}
	s.setupRoutes(cfg)
	return s
}

// Router exposes the configured handler for an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(cfg Config) {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	s.router.Use(
		httputil.RequestIDMiddleware,
		s.contextLogger,
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(maxBody),
	)
	if len(cfg.AllowedOrigins) > 0 {
		s.router.Use(httputil.CORSMiddleware(cfg.AllowedOrigins))
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	if cfg.Auth != nil {
		v1.Use(cfg.Auth)
	}

	invitationHandlers := NewInvitationHandlers(cfg.Invitations, cfg.Guard, cfg.Logger)
	invitationHandlers.RegisterRoutes(v1, cfg.RateLimit)

	memberHandlers := NewMemberHandlers(cfg.Users, cfg.Orgs, cfg.Management, cfg.Roles, cfg.Logger)
	memberHandlers.RegisterRoutes(v1)

	branchHandlers := NewBranchHandlers(cfg.Orgs, cfg.Logger)
	branchHandlers.RegisterRoutes(v1)
}

// contextLogger puts the server logger into the request context so request
// logging picks up the configured level and sink.
func (s *Server) contextLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.logger != nil {
			r = r.WithContext(observability.WithLogger(r.Context(), s.logger))
		}
		next.ServeHTTP(w, r)
	})
}
