// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Relay-Gate/Relaygate/internal/domain/auth"
)

// ClientStore implements auth.ClientStore with an in-memory map.
// Thread-safe for concurrent access. For development/testing only.
type ClientStore struct {
	clients map[string]*auth.RegisteredClient
	mu      sync.RWMutex
}

// NewClientStore creates a new in-memory client store.
func NewClientStore() *ClientStore {
	return &ClientStore{
		clients: make(map[string]*auth.RegisteredClient),
	}
}

// Get retrieves a registered client by client_id.
// Returns auth.ErrClientNotFound if the client doesn't exist.
func (s *ClientStore) Get(ctx context.Context, clientID string) (*auth.RegisteredClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, auth.ErrClientNotFound
	}

	// Return a copy to prevent mutation
	clientCopy := *client
	return &clientCopy, nil
}

// Add registers a client (for seeding/testing).
func (s *ClientStore) Add(client *auth.RegisteredClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	clientCopy := *client
	s.clients[client.ClientID] = &clientCopy
}

// clientSeedFile is the YAML shape of a client seed file.
type clientSeedFile struct {
	Clients []auth.RegisteredClient `yaml:"clients"`
}

// LoadSeedFile populates the store from a YAML file of registered clients:
//
//	clients:
//	  - client_id: demo
//	    client_secret: s3cret
//	    client_secret_expires_at: 1767225600
func (s *ClientStore) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read client seed file: %w", err)
	}

	var seed clientSeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse client seed file: %w", err)
	}

	for i := range seed.Clients {
		if seed.Clients[i].ClientID == "" {
			return fmt.Errorf("clients[%d]: client_id is required", i)
		}
		s.Add(&seed.Clients[i])
	}
	return nil
}

// Compile-time interface verification.
var _ auth.ClientStore = (*ClientStore)(nil)
