// Package stdio provides the stdio transport adapter: one duplex channel
// over a line-delimited JSON-RPC stream, typically stdin/stdout.
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Relay-Gate/Relaygate/internal/domain/session"
	"github.com/Relay-Gate/Relaygate/internal/domain/transport"
	"github.com/Relay-Gate/Relaygate/pkg/wire"
)

// maxLineSize bounds a single inbound line (4 MiB, matching the SSE
// transport's message cap).
const maxLineSize = 4 << 20

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

// Transport carries newline-delimited JSON-RPC envelopes over an arbitrary
// reader/writer pair. There is no session registry involved; a process has
// exactly one stdio channel.
type Transport struct {
	in     io.Reader
	out    io.Writer
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

// NewTransport creates a stdio transport over the given streams. Pass
// os.Stdin and os.Stdout for the conventional wiring.
func NewTransport(in io.Reader, out io.Writer, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		in:     in,
		out:    out,
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
	t.logger.Debug("stdio session started", "session", session.Digest(t.sessionID))

	go t.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-t.done:
		}
	}()

	return nil
}

// readLoop scans newline-delimited messages from the input stream until
// EOF or close. Malformed lines are reported through onError and skipped;
// the stream keeps going.
func (t *Transport) readLoop() {
	scanner := bufio.NewScanner(t.in)
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, maxLineSize)

	for scanner.Scan() {
		if t.state.Load() != stateStreaming {
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		// The scanner reuses its backing array on the next Scan, so the
		// envelope must own its bytes for callers that retain it.
		raw := append([]byte(nil), line...)

		env, err := wire.Parse(raw)
		if err != nil {
			t.reportError(err)
			continue
		}
		if t.onMessage != nil {
			t.onMessage(env)
		}
	}

	if err := scanner.Err(); err != nil && t.state.Load() == stateStreaming {
		t.reportError(fmt.Errorf("failed to read input stream: %w", err))
	}

	// EOF on stdin means the peer is gone.
	_ = t.Close()
}

// Send writes one envelope as a single line. Concurrent sends are
// serialized so lines never interleave. Returns transport.ErrNotConnected
// unless streaming.
func (t *Transport) Send(env *wire.Envelope) error {
	if t.state.Load() != stateStreaming {
		return transport.ErrNotConnected
	}

	data, err := wire.Encode(env)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	t.writeMu.Lock()
	_, err = t.out.Write(append(data, '\n'))
	t.writeMu.Unlock()

	if err != nil {
		t.reportError(err)
		_ = t.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close releases the channel. Idempotent; the close callback fires at most
// once. The input reader is closed when it supports closing, which unblocks
// the read loop.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.state.Store(stateClosed)
		if closer, ok := t.in.(io.Closer); ok {
			_ = closer.Close()
		}
		close(t.done)
		if t.onClose != nil {
			t.onClose()
		}
		t.logger.Debug("stdio session closed", "session", session.Digest(t.sessionID))
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
