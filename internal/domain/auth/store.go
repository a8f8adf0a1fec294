package auth

import (
	"context"
	"errors"
)

// ErrClientNotFound is returned when no client is registered under the
// given client_id.
var ErrClientNotFound = errors.New("client not found")

// ClientStore provides registered-client lookup.
// This interface is defined in the domain to avoid circular imports.
// Implementations: in-memory (YAML-seeded), SQLite.
type ClientStore interface {
	// Get retrieves a registered client by its client_id.
	// Returns ErrClientNotFound if the client doesn't exist.
	Get(ctx context.Context, clientID string) (*RegisteredClient, error)
}
