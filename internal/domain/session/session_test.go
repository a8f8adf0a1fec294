package session

import (
	"encoding/hex"
	"testing"
)

func TestGenerateID(t *testing.T) {
	t.Parallel()

	id, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID() error: %v", err)
	}
	if len(id) != 64 {
		t.Errorf("len(id) = %d, want 64", len(id))
	}
	if _, err := hex.DecodeString(id); err != nil {
		t.Errorf("id is not valid hex: %v", err)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 100)
	for range 100 {
		id, err := GenerateID()
		if err != nil {
			t.Fatalf("GenerateID() error: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("GenerateID() produced duplicate %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestDigest(t *testing.T) {
	t.Parallel()

	a := Digest("session-a")
	b := Digest("session-b")

	if a == "" {
		t.Error("Digest() returned empty string")
	}
	if a != Digest("session-a") {
		t.Error("Digest() is not deterministic")
	}
	if a == b {
		t.Error("Digest() collided for distinct inputs")
	}
	if a == "session-a" {
		t.Error("Digest() must not echo the raw session ID")
	}
}
