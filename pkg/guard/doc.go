// Package guard makes access-control decisions for branch-scoped operations.
//
// Owners hold organization-wide access; managers, waiters and chefs act
// within the branches they are members of. The guard only decides, it does
// not resolve branch ids from requests; that happens in pkg/middleware.
package guard
