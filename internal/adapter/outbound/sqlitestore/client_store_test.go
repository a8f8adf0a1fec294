package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Relay-Gate/Relaygate/internal/domain/auth"
)

func openTestStore(t *testing.T) *ClientStore {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "clients.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClientStore_PutAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	want := &auth.RegisteredClient{
		ClientID:        "app-1",
		ClientSecret:    "s1",
		SecretExpiresAt: 1767225600,
	}
	if err := store.Put(ctx, want); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := store.Get(ctx, "app-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ClientID != want.ClientID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, want.ClientID)
	}
	if got.ClientSecret != want.ClientSecret {
		t.Errorf("ClientSecret = %q, want %q", got.ClientSecret, want.ClientSecret)
	}
	if got.SecretExpiresAt != want.SecretExpiresAt {
		t.Errorf("SecretExpiresAt = %d, want %d", got.SecretExpiresAt, want.SecretExpiresAt)
	}
}

func TestClientStore_GetNonExistent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	_, err := store.Get(context.Background(), "ghost")
	if !errors.Is(err, auth.ErrClientNotFound) {
		t.Errorf("Get() error = %v, want ErrClientNotFound", err)
	}
}

func TestClientStore_PutReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Put(ctx, &auth.RegisteredClient{ClientID: "app", ClientSecret: "old"}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := store.Put(ctx, &auth.RegisteredClient{ClientID: "app", ClientSecret: "new"}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := store.Get(ctx, "app")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ClientSecret != "new" {
		t.Errorf("ClientSecret = %q, want %q", got.ClientSecret, "new")
	}
}

func TestClientStore_PutRequiresID(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	if err := store.Put(context.Background(), &auth.RegisteredClient{}); err == nil {
		t.Error("Put() without client_id should fail")
	}
}
