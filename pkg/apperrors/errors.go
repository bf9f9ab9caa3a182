// Package apperrors defines the error taxonomy shared across the Tably API.
//
// Each error type maps to exactly one HTTP status class (see httputil).
// Handlers and middleware should construct these instead of raw fmt.Errorf
// values whenever the failure is user-visible.
package apperrors

import (
	"errors"
	"fmt"
)

// AuthenticationError indicates a missing, malformed, expired, or otherwise
// unverifiable bearer token. Always rendered as 401 with a generic message.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return "authentication failed"
	}
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NewAuthenticationError wraps err as an authentication failure.
func NewAuthenticationError(err error) *AuthenticationError {
	return &AuthenticationError{Err: err}
}

// ValidationError indicates missing or invalid caller input. Rendered as 400
// with the offending field named.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a named field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AuthorizationError indicates the principal is authenticated but not
// permitted to act on the requested resource. Rendered as 403.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NewAuthorizationError creates an authorization error.
func NewAuthorizationError(message string) *AuthorizationError {
	return &AuthorizationError{Message: message}
}

// NotFoundError indicates a referenced resource does not exist. Rendered as 404.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// NewNotFoundError creates a not-found error for a resource name.
func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// ConflictError indicates the request conflicts with existing state, e.g. a
// duplicate pending invitation. Rendered as 409.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError creates a conflict error.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// ExternalServiceError indicates a failure talking to the identity provider's
// administrative API. Rendered as 502 without leaking provider internals.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewExternalServiceError wraps a provider failure.
func NewExternalServiceError(service string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Err: err}
}

// ProvisionError wraps any failure during just-in-time provisioning. It is
// never surfaced to API clients: the auth middleware logs it and continues
// with the claims-derived principal.
type ProvisionError struct {
	Stage string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Stage, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// NewProvisionError wraps a provisioning failure with the stage it occurred in.
func NewProvisionError(stage string, err error) *ProvisionError {
	return &ProvisionError{Stage: stage, Err: err}
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsExternalService reports whether err is an ExternalServiceError.
func IsExternalService(err error) bool {
	var target *ExternalServiceError
	return errors.As(err, &target)
}
