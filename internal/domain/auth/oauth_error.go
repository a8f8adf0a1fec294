package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind is the OAuth-style error tag surfaced to callers.
type ErrorKind string

const (
	// KindInvalidRequest indicates a malformed credential body.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindInvalidClient indicates an authentication failure.
	KindInvalidClient ErrorKind = "invalid_client"
	// KindServerError indicates an unexpected internal failure.
	KindServerError ErrorKind = "server_error"
)

// OAuthError is the typed failure produced by the authentication gate.
// It serializes to the fixed {"error", "error_description"} shape; the
// description is safe to surface to the caller.
type OAuthError struct {
	// Kind is the error tag.
	Kind ErrorKind
	// Description is a human-readable, client-safe description.
	Description string
}

// Error implements the error interface.
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// HTTPStatus maps the error kind to its HTTP status class:
// invalid_* errors are the caller's fault (400), server_error is ours (500).
func (e *OAuthError) HTTPStatus() int {
	if e.Kind == KindServerError {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// MarshalJSON implements the fixed OAuth error body shape.
func (e *OAuthError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}{
		Error:            string(e.Kind),
		ErrorDescription: e.Description,
	})
}

// NewOAuthError creates an OAuthError with the given kind and description.
func NewOAuthError(kind ErrorKind, description string) *OAuthError {
	return &OAuthError{Kind: kind, Description: description}
}
