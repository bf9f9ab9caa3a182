// Package users stores the local mirror of identity-provider users.
//
// Rows are keyed by the external subject id (auth0_id) and kept fresh by
// just-in-time provisioning: every authenticated request upserts the
// caller's profile. The local role column reflects the effective role,
// which an accepted invitation may override.
package users
