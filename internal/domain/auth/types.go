// Package auth contains the domain types and logic for client authentication.
package auth

import (
	"time"
)

// RegisteredClient is one entry in the external client registry. The gate
// treats the registry as read-only; registration and secret rotation
// happen out of band.
type RegisteredClient struct {
	// ClientID is the unique identifier the caller presents.
	ClientID string `yaml:"client_id"`
	// ClientSecret is the stored secret. Empty means the client is public
	// and no secret is required. May be plaintext or an Argon2id PHC hash.
	ClientSecret string `yaml:"client_secret"`
	// SecretExpiresAt is the secret expiry in epoch seconds.
	// Zero means the secret never expires.
	SecretExpiresAt int64 `yaml:"client_secret_expires_at"`
}

// RequiresSecret returns true if callers must present a secret.
func (c *RegisteredClient) RequiresSecret() bool {
	return c.ClientSecret != ""
}

// SecretExpired returns true if the stored secret has an expiry in the past.
func (c *RegisteredClient) SecretExpired(now time.Time) bool {
	if c.SecretExpiresAt == 0 {
		return false
	}
	return now.Unix() > c.SecretExpiresAt
}
