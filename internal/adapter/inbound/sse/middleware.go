package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Relay-Gate/Relaygate/internal/ctxkey"
	"github.com/Relay-Gate/Relaygate/internal/domain/auth"
)

// RequestIDMiddleware extracts or generates a request ID and enriches the
// logger. The request ID is stored in context under ctxkey.RequestIDKey;
// an enriched logger with a request_id field under ctxkey.LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), ctxkey.RequestIDKey{}, requestID)
			ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, enriched)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// OriginAllowlist validates the Origin header against an allowlist,
// preventing DNS rebinding against the event stream. If allowedOrigins is
// empty, all requests with an Origin header are blocked (local-only mode).
// Requests without an Origin header are allowed (same-origin or
// non-browser).
func OriginAllowlist(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[origin]; !ok {
				http.Error(w, "Forbidden: origin not allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireClientAuth gates an endpoint on client credentials carried in the
// request body (client_id, optional client_secret). On success the
// resolved client record is attached to the request context and the body
// is restored for the next handler; on failure the fixed OAuth error shape
// is written and the request stops here.
func RequireClientAuth(gate *auth.Gate, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
			_ = r.Body.Close()
			if err != nil {
				writeOAuthError(w, r, metrics,
					auth.NewOAuthError(auth.KindInvalidRequest, "failed to read request body"))
				return
			}

			var creds auth.Credentials
			if err := json.Unmarshal(body, &creds); err != nil {
				writeOAuthError(w, r, metrics,
					auth.NewOAuthError(auth.KindInvalidRequest, "request body must be a JSON object"))
				return
			}

			client, err := gate.Authenticate(r.Context(), creds)
			if err != nil {
				var oerr *auth.OAuthError
				if !errors.As(err, &oerr) {
					oerr = auth.NewOAuthError(auth.KindServerError, "Internal server error")
				}
				writeOAuthError(w, r, metrics, oerr)
				return
			}

			ctx := context.WithValue(r.Context(), ctxkey.ClientKey{}, client)
			r = r.WithContext(ctx)
			r.Body = io.NopCloser(bytes.NewReader(body))

			next.ServeHTTP(w, r)
		})
	}
}

// ClientFromContext retrieves the authenticated client attached by
// RequireClientAuth. Returns nil if the request was not authenticated.
func ClientFromContext(ctx context.Context) *auth.RegisteredClient {
	client, _ := ctx.Value(ctxkey.ClientKey{}).(*auth.RegisteredClient)
	return client
}

// writeOAuthError writes the fixed {"error", "error_description"} body
// with the status class the error kind maps to.
func writeOAuthError(w http.ResponseWriter, r *http.Request, metrics *Metrics, oerr *auth.OAuthError) {
	LoggerFromContext(r.Context()).Warn("client authentication failed",
		"kind", string(oerr.Kind), "description", oerr.Description)
	if metrics != nil {
		metrics.AuthFailuresTotal.WithLabelValues(string(oerr.Kind)).Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(oerr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(oerr)
}
