package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
)

// Credentials is the untrusted credential body a caller presents.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Gate validates untrusted client credentials against the registered
// client store before a message is allowed to reach a transport. It is
// stateless per request.
type Gate struct {
	store  ClientStore
	logger *slog.Logger
	// now is injectable for expiry tests.
	now func() time.Time
}

// NewGate creates a Gate over the given client store.
func NewGate(store ClientStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, logger: logger, now: time.Now}
}

// Authenticate validates the credentials and returns the resolved client.
// Every failure is a *OAuthError; internal lookup failures are logged with
// full detail and surfaced only as an opaque server_error.
func (g *Gate) Authenticate(ctx context.Context, creds Credentials) (*RegisteredClient, error) {
	if creds.ClientID == "" {
		return nil, NewOAuthError(KindInvalidRequest, "client_id is required")
	}

	client, err := g.store.Get(ctx, creds.ClientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, NewOAuthError(KindInvalidClient, "Invalid client_id")
		}
		g.logger.Error("client store lookup failed", "error", err)
		return nil, NewOAuthError(KindServerError, "Internal server error")
	}

	if !client.RequiresSecret() {
		return client, nil
	}

	if creds.ClientSecret == "" {
		return nil, NewOAuthError(KindInvalidClient, "Client secret is required")
	}

	// An expired secret can never authenticate, whatever value the
	// caller supplied.
	if client.SecretExpired(g.now()) {
		return nil, NewOAuthError(KindInvalidClient, "Client secret has expired")
	}

	match, err := VerifySecret(creds.ClientSecret, client.ClientSecret)
	if err != nil {
		g.logger.Error("secret verification failed", "client_id", creds.ClientID, "error", err)
		return nil, NewOAuthError(KindServerError, "Internal server error")
	}
	if !match {
		return nil, NewOAuthError(KindInvalidClient, "Invalid client_secret")
	}

	return client, nil
}

// VerifySecret verifies a caller-supplied secret against the stored value.
// Stored secrets are either plaintext (compared in constant time) or
// Argon2id hashes in PHC format.
func VerifySecret(supplied, stored string) (bool, error) {
	if strings.HasPrefix(stored, "$argon2id$") {
		return safeArgon2idCompare(supplied, stored)
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(stored)) == 1, nil
}

// argon2idParams defines OWASP minimum parameters for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024, // 47 MiB (OWASP minimum: 46 MiB)
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashSecret returns an Argon2id hash of the raw secret in PHC format,
// suitable for storing in the client registry in place of the plaintext.
func HashSecret(rawSecret string) (string, error) {
	return argon2id.CreateHash(rawSecret, argon2idParams)
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic
// recovery. The underlying argon2 library panics on malformed hashes with
// invalid parameters (e.g. t=0 rounds); those become errors here so the
// gate never panics on registry data.
func safeArgon2idCompare(supplied, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(supplied, storedHash)
}
