// Package transport defines the bidirectional channel contract every
// Relaygate carrier implements (SSE, stdio, WebSocket).
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/Relay-Gate/Relaygate/pkg/wire"
)

// ErrNotConnected is returned by Send when the transport is not in the
// streaming state. A send on a closed transport always fails with this
// error; messages are never silently dropped.
var ErrNotConnected = errors.New("transport not connected")

// StateError reports an operation invoked in an invalid lifecycle state,
// such as starting an already-started transport. It indicates a bug in the
// integrating code, not a remote-peer condition, so implementations panic
// with it rather than returning it.
type StateError struct {
	// Op is the operation that was attempted.
	Op string
	// State is the lifecycle state the transport was in.
	State string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("transport: %s called in state %s", e.Op, e.State)
}

// Transport is a single logical duplex channel between one peer and the
// server. Implementations deliver outbound envelopes in submission order
// and invoke the registered callbacks for inbound traffic and lifecycle
// events.
//
// Callback contract:
//   - OnMessage fires once per validated inbound envelope, in arrival order.
//   - OnError fires on recoverable conditions (malformed inbound data,
//     transport-level I/O errors).
//   - OnClose fires exactly once per instance, however many close triggers
//     race.
//
// Callbacks must be registered before Start; registering them later is not
// synchronized.
type Transport interface {
	// Start establishes the carrier-specific connection. Calling Start
	// twice on the same instance panics with a *StateError.
	Start(ctx context.Context) error

	// Send delivers one envelope over the underlying channel. Concurrent
	// calls never interleave partial frames. Returns ErrNotConnected if
	// the transport is not streaming.
	Send(env *wire.Envelope) error

	// Close releases the underlying connection and fires OnClose if it
	// has not already fired. Idempotent.
	Close() error

	// SessionID returns the opaque session identifier, or the empty
	// string before Start.
	SessionID() string

	// OnMessage registers the inbound message callback.
	OnMessage(fn func(*wire.Envelope))

	// OnError registers the recoverable error callback.
	OnError(fn func(error))

	// OnClose registers the termination callback.
	OnClose(fn func())
}
