package service

import (
	"errors"
	"net/http"
	"strings"
)

// Sentinel errors for the auth and RBAC services. Handlers translate them to
// HTTP statuses via HTTPStatus; wrap with fmt.Errorf("%w: ...") to add detail.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrConflict           = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrTenantRequired     = errors.New("tenant context required")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantInactive     = errors.New("tenant is not active")
	ErrForbidden          = errors.New("access denied")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidInput       = errors.New("invalid input")
)

// HTTPStatus maps a service error to the status a handler should return.
// Tenant-scoping misses surface as 404, indistinguishable from true absence,
// so cross-tenant existence never leaks.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountInactive), errors.Is(err, ErrForbidden), errors.Is(err, ErrTenantInactive):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTenantRequired), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// isUniqueViolation sniffs a persistence-layer duplicate-key failure so it can
// surface as ErrConflict without importing driver error types everywhere.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "SQLSTATE 23505")
}
