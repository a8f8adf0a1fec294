// Package sqlitestore provides a SQLite-backed registered-client store.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Relay-Gate/Relaygate/internal/domain/auth"
)

const schema = `
CREATE TABLE IF NOT EXISTS registered_clients (
	client_id                TEXT PRIMARY KEY,
	client_secret            TEXT NOT NULL DEFAULT '',
	client_secret_expires_at INTEGER NOT NULL DEFAULT 0
);`

// ClientStore implements auth.ClientStore on a SQLite database.
// Safe for concurrent use; database/sql serializes access to the pool.
type ClientStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the client table exists.
func Open(path string) (*ClientStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open client database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize client schema: %w", err)
	}

	return &ClientStore{db: db}, nil
}

// Get retrieves a registered client by client_id.
// Returns auth.ErrClientNotFound if the client doesn't exist.
func (s *ClientStore) Get(ctx context.Context, clientID string) (*auth.RegisteredClient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT client_id, client_secret, client_secret_expires_at
		 FROM registered_clients WHERE client_id = ?`, clientID)

	var client auth.RegisteredClient
	err := row.Scan(&client.ClientID, &client.ClientSecret, &client.SecretExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query client: %w", err)
	}
	return &client, nil
}

// Put inserts or replaces a registered client. Used for seeding and by
// registration tooling; the gate itself never writes.
func (s *ClientStore) Put(ctx context.Context, client *auth.RegisteredClient) error {
	if client.ClientID == "" {
		return errors.New("client_id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO registered_clients
		 (client_id, client_secret, client_secret_expires_at) VALUES (?, ?, ?)`,
		client.ClientID, client.ClientSecret, client.SecretExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store client: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *ClientStore) Close() error {
	return s.db.Close()
}

// Compile-time interface verification.
var _ auth.ClientStore = (*ClientStore)(nil)
