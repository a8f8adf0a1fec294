// Package session manages duplex channel identity and the process-wide
// registry that correlates inbound posts with live transports.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// GenerateID creates a cryptographically random session ID.
// Session IDs must be unguessable: they are the only token correlating an
// inbound POST with its outbound stream. Returns 64 hex characters
// (32 bytes from crypto/rand).
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Digest returns a short non-reversible digest of a session ID for use in
// log fields. Raw session IDs are bearer tokens and must not be logged.
func Digest(id string) string {
	return strconv.FormatUint(xxhash.Sum64String(id), 16)
}
