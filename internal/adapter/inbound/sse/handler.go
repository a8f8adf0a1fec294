package sse

import (
	"errors"
	"net/http"

	"github.com/Relay-Gate/Relaygate/internal/domain/session"
)

// Variant selects which SSE transport implementation the server creates
// for incoming streams.
type Variant int

const (
	// VariantDirect writes frames straight to the response writer.
	VariantDirect Variant = iota
	// VariantStream queues frames and drains them into the response body.
	VariantStream
)

// MessagePoster is the inbound half of an SSE session: both variants
// accept POSTed messages through it.
type MessagePoster interface {
	HandlePostMessage(w http.ResponseWriter, r *http.Request)
}

// handleStream accepts a stream-establishment request and blocks for the
// lifetime of the session.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	logger := LoggerFromContext(r.Context())
	ctx := r.Context()

	switch s.variant {
	case VariantStream:
		t := NewStreamTransport(s.postPath, s.registry, logger, s.metrics)
		if s.connHandler != nil {
			s.connHandler(t)
		}
		if err := t.Start(ctx); err != nil {
			logger.Error("failed to start stream transport", "error", err)
			http.Error(w, "failed to establish stream", http.StatusInternalServerError)
			return
		}
		_ = t.Stream(w)

	default:
		t, err := NewTransport(w, s.postPath, s.registry, logger, s.metrics)
		if err != nil {
			logger.Error("failed to create transport", "error", err)
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		if s.connHandler != nil {
			s.connHandler(t)
		}
		if err := t.Start(ctx); err != nil {
			logger.Error("failed to start transport", "error", err)
			http.Error(w, "failed to establish stream", http.StatusInternalServerError)
			return
		}
		// Hold the handler (and with it the connection) open until the
		// session closes.
		<-t.Done()
	}
}

// handlePost routes an inbound message to the session named in the query
// string.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "sessionId query parameter is required", http.StatusBadRequest)
		return
	}

	t, err := s.registry.Get(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "Unknown sessionId", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	poster, ok := t.(MessagePoster)
	if !ok {
		// A registered transport that cannot accept posts is a wiring
		// bug in the hosting code.
		http.Error(w, "session does not accept posted messages", http.StatusInternalServerError)
		return
	}

	poster.HandlePostMessage(w, r)
}

// healthHandler responds 200 for liveness checks.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}
