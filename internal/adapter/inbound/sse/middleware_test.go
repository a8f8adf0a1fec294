package sse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Relay-Gate/Relaygate/internal/domain/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var gotLogger bool
	handler := RequestIDMiddleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sse", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID response header not set")
	}
	if !gotLogger {
		t.Error("enriched logger not found in context")
	}
}

func TestRequestIDMiddleware_PropagatesID(t *testing.T) {
	handler := RequestIDMiddleware(testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/sse", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "req-123")
	}
}

func TestOriginAllowlist(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantStatus int
	}{
		{"no origin header always allowed", nil, "", http.StatusOK},
		{"empty allowlist blocks origins", nil, "http://evil.example", http.StatusForbidden},
		{"allowed origin passes", []string{"http://localhost:3000"}, "http://localhost:3000", http.StatusOK},
		{"unlisted origin blocked", []string{"http://localhost:3000"}, "http://evil.example", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := OriginAllowlist(tt.allowed)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/sse", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

type mapStore map[string]*auth.RegisteredClient

func (m mapStore) Get(_ context.Context, clientID string) (*auth.RegisteredClient, error) {
	client, ok := m[clientID]
	if !ok {
		return nil, auth.ErrClientNotFound
	}
	return client, nil
}

func authTestGate() *auth.Gate {
	store := mapStore{
		"client-1": {ClientID: "client-1", ClientSecret: "s3cret"},
	}
	return auth.NewGate(store, testLogger())
}

func TestRequireClientAuth_ValidCredentials(t *testing.T) {
	var client *auth.RegisteredClient
	var body []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client = ClientFromContext(r.Context())
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	})
	handler := RequireClientAuth(authTestGate(), nil)(next)

	payload := `{"client_id":"client-1","client_secret":"s3cret","jsonrpc":"2.0","method":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	if client == nil || client.ClientID != "client-1" {
		t.Errorf("ClientFromContext() = %+v, want client-1", client)
	}
	// The body must be restored intact for the next handler.
	if string(body) != payload {
		t.Errorf("downstream body = %q, want original payload", body)
	}
}

func TestRequireClientAuth_Failures(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantStatus int
		wantKind   string
	}{
		{"missing client_id", `{"jsonrpc":"2.0"}`, http.StatusBadRequest, "invalid_request"},
		{"unknown client", `{"client_id":"nope"}`, http.StatusBadRequest, "invalid_client"},
		{"wrong secret", `{"client_id":"client-1","client_secret":"bad"}`, http.StatusBadRequest, "invalid_client"},
		{"not json", `hello`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireClientAuth(authTestGate(), nil)(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(tt.payload))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var oerr struct {
				Error            string `json:"error"`
				ErrorDescription string `json:"error_description"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &oerr); err != nil {
				t.Fatalf("failed to parse error body: %v\nbody: %s", err, rec.Body.String())
			}
			if oerr.Error != tt.wantKind {
				t.Errorf("error kind = %q, want %q", oerr.Error, tt.wantKind)
			}
			if oerr.ErrorDescription == "" {
				t.Error("error_description is empty")
			}
		})
	}
}
