package service

import "net/http"

// AuthError is an expected, caller-recoverable failure surfaced with a
// stable code and HTTP status. Anything else bubbling out of the service
// layer is treated as an internal error at the boundary.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return e.Code + ": " + e.Description
}

func newAuthError(code, description string, status int) *AuthError {
	return &AuthError{Code: code, Description: description, Status: status}
}

func errInvalidRequest(desc string) *AuthError {
	return newAuthError("invalid_request", desc, http.StatusBadRequest)
}

func errInvalidCredentials() *AuthError {
	return newAuthError("invalid_credentials", "Invalid email or password.", http.StatusUnauthorized)
}

func errAccountLocked() *AuthError {
	return newAuthError("account_locked", "Account temporarily locked after repeated failed logins.", http.StatusLocked)
}

func errAccountInactive() *AuthError {
	return newAuthError("account_inactive", "Account is not active.", http.StatusUnauthorized)
}

func errDuplicateIdentity(desc string) *AuthError {
	return newAuthError("duplicate_identity", desc, http.StatusBadRequest)
}

func errForbidden(desc string) *AuthError {
	return newAuthError("forbidden", desc, http.StatusForbidden)
}

func errNotFound(desc string) *AuthError {
	return newAuthError("not_found", desc, http.StatusNotFound)
}
