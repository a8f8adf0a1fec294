// Package ws provides the WebSocket transport adapter: a single duplex
// channel where both directions share one upgraded connection, so no
// session correlation endpoint is needed.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/Relay-Gate/Relaygate/internal/domain/session"
	"github.com/Relay-Gate/Relaygate/internal/domain/transport"
	"github.com/Relay-Gate/Relaygate/pkg/wire"
)

// maxMessageSize bounds a single inbound message (4 MiB, matching the SSE
// transport's cap).
const maxMessageSize = 4 << 20

// Transport lifecycle states.
const (
	stateUnstarted int32 = iota
	stateStreaming
	stateClosed
)

func stateString(s int32) string {
	switch s {
	case stateUnstarted:
		return "unstarted"
	case stateStreaming:
		return "streaming"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport carries JSON-RPC envelopes as text messages over a WebSocket
// connection.
type Transport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	sessionID string
	state     atomic.Int32
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex

	onMessage func(*wire.Envelope)
	onError   func(error)
	onClose   func()
}

// Accept upgrades an HTTP request to a WebSocket and wraps it in a
// transport. originPatterns lists the host patterns browsers may connect
// from; empty means same-origin only. Requests without an Origin header
// (non-browser peers) always pass.
func Accept(w http.ResponseWriter, r *http.Request, originPatterns []string, logger *slog.Logger) (*Transport, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to accept websocket: %w", err)
	}
	return NewTransport(conn, logger), nil
}

// NewTransport wraps an established WebSocket connection.
func NewTransport(conn *websocket.Conn, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	conn.SetReadLimit(maxMessageSize)
	return &Transport{
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// SessionID returns the session identifier, or "" before Start.
func (t *Transport) SessionID() string { return t.sessionID }

// Done is closed when the transport reaches the Closed state.
func (t *Transport) Done() <-chan struct{} { return t.done }

// OnMessage registers the inbound message callback.
func (t *Transport) OnMessage(fn func(*wire.Envelope)) { t.onMessage = fn }

// OnError registers the recoverable error callback.
func (t *Transport) OnError(fn func(error)) { t.onError = fn }

// OnClose registers the termination callback.
func (t *Transport) OnClose(fn func()) { t.onClose = fn }

// Start assigns a session ID and launches the read loop. A second Start on
// the same instance panics.
func (t *Transport) Start(ctx context.Context) error {
	if !t.state.CompareAndSwap(stateUnstarted, stateStreaming) {
		panic(&transport.StateError{Op: "Start", State: stateString(t.state.Load())})
	}

	id, err := session.GenerateID()
	if err != nil {
		t.state.Store(stateClosed)
		return err
	}
	t.sessionID = id
	t.logger.Debug("websocket session started", "session", session.Digest(t.sessionID))

	go t.readLoop(ctx)

	return nil
}

// readLoop pumps inbound messages until the connection drops or the
// context ends. Malformed payloads are reported through onError and
// skipped.
func (t *Transport) readLoop(ctx context.Context) {
	defer func() { _ = t.Close() }()

	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && ctx.Err() == nil && t.state.Load() == stateStreaming {
				t.reportError(fmt.Errorf("failed to read websocket message: %w", err))
			}
			return
		}
		if typ != websocket.MessageText {
			t.reportError(fmt.Errorf("unexpected message type %v, want text", typ))
			continue
		}

		env, err := wire.Parse(data)
		if err != nil {
			t.reportError(err)
			continue
		}
		if t.onMessage != nil {
			t.onMessage(env)
		}
	}
}

// Send writes one envelope as a single text message. Concurrent sends are
// serialized so messages never interleave. Returns
// transport.ErrNotConnected unless streaming.
func (t *Transport) Send(env *wire.Envelope) error {
	if t.state.Load() != stateStreaming {
		return transport.ErrNotConnected
	}

	data, err := wire.Encode(env)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	t.writeMu.Lock()
	err = t.conn.Write(context.Background(), websocket.MessageText, data)
	t.writeMu.Unlock()

	if err != nil {
		t.reportError(err)
		_ = t.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close releases the connection. Idempotent; the close callback fires at
// most once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.state.Store(stateClosed)
		_ = t.conn.Close(websocket.StatusNormalClosure, "session closed")
		close(t.done)
		if t.onClose != nil {
			t.onClose()
		}
		t.logger.Debug("websocket session closed", "session", session.Digest(t.sessionID))
	})
	return nil
}

func (t *Transport) reportError(err error) {
	if t.onError != nil {
		t.onError(err)
	}
}

// Compile-time check that Transport satisfies the channel contract.
var _ transport.Transport = (*Transport)(nil)
