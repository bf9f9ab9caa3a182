package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tablyhq/tably/pkg/contextkeys"
	"github.com/tablyhq/tably/pkg/guard"
	"github.com/tablyhq/tably/pkg/httputil"
)

// branchHeader is the fallback branch selector for clients that cannot set
// a path or query parameter.
const branchHeader = "X-Branch-Id"

// BranchGuard authorizes branch-scoped routes. The branch id is resolved
// with path beating query beating header, then checked against the
// principal's memberships. The resolved id is stored in the context for
// handlers.
func BranchGuard(g *guard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r)
			if principal == nil {
				httputil.WriteUnauthorized(w, "invalid token")
				return
			}

			branchID := resolveBranchID(r)
			if err := g.Check(principal, branchID); err != nil {
				httputil.WriteDomainError(w, err)
				return
			}

			ctx := contextkeys.WithBranchID(r.Context(), branchID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveBranchID(r *http.Request) string {
	if id, ok := mux.Vars(r)["branch_id"]; ok && id != "" {
		return id
	}
	if id := r.URL.Query().Get("branch_id"); id != "" {
		return id
	}
	return r.Header.Get(branchHeader)
}
