package sse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Relay-Gate/Relaygate/internal/domain/session"
	"github.com/Relay-Gate/Relaygate/internal/domain/transport"
	"github.com/Relay-Gate/Relaygate/pkg/wire"
)

// frameQueueSize bounds outbound frames buffered between Send and the
// draining handler. Sends block once the queue is full, inheriting the
// peer connection's flow control.
const frameQueueSize = 16

// StreamTransport is the queue-backed SSE variant: it owns an internal
// frame queue whose readable end the HTTP handler drains into the response
// body via Stream. Close is detected through the request context passed to
// Start (the inbound request's abort signal).
type StreamTransport struct {
	core

	frames chan []byte
}

// NewStreamTransport creates the queue-backed variant.
func NewStreamTransport(postPath string, registry *session.Registry, logger *slog.Logger, metrics *Metrics) *StreamTransport {
	return &StreamTransport{
		core:   newCore(postPath, registry, logger, metrics),
		frames: make(chan []byte, frameQueueSize),
	}
}

// Start assigns a fresh session ID, queues the endpoint event as the first
// frame, and registers the session. The transport closes itself when ctx
// is cancelled.
func (t *StreamTransport) Start(ctx context.Context) error {
	if err := t.begin(); err != nil {
		return err
	}

	// The queue is empty at this point, so the endpoint frame is
	// guaranteed to precede every message frame.
	t.frames <- fmt.Appendf(nil, "event: endpoint\ndata: %s\n\n", t.endpointURL())

	t.register(t)
	t.logger.Debug("session started", "session", session.Digest(t.sessionID))

	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-t.done:
		}
	}()

	return nil
}

// Send frames one envelope and enqueues it for the draining handler.
// The channel hand-off keeps frames whole, so concurrent sends never
// interleave on the wire. Returns transport.ErrNotConnected unless
// streaming.
func (t *StreamTransport) Send(env *wire.Envelope) error {
	if !t.streaming() {
		return transport.ErrNotConnected
	}

	data, err := wire.Encode(env)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	frame := fmt.Appendf(nil, "event: message\ndata: %s\n\n", data)

	// Guard the race between the streaming check above and a concurrent
	// close: never block forever on a queue nobody drains.
	select {
	case t.frames <- frame:
	case <-t.done:
		return transport.ErrNotConnected
	}

	if t.metrics != nil {
		t.metrics.MessagesTotal.WithLabelValues("out").Inc()
	}
	return nil
}

// Stream drains queued frames into w until the transport closes, flushing
// after every frame. It is the handler's side of the readable end and
// returns when the session is over.
func (t *StreamTransport) Stream(w http.ResponseWriter) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")

	for {
		select {
		case frame := <-t.frames:
			if _, err := w.Write(frame); err != nil {
				t.reportError(err)
				_ = t.Close()
				return fmt.Errorf("failed to write frame: %w", err)
			}
			flusher.Flush()
		case <-t.done:
			// Drain anything queued before the close won the race.
			for {
				select {
				case frame := <-t.frames:
					if _, err := w.Write(frame); err != nil {
						return nil
					}
					flusher.Flush()
				default:
					return nil
				}
			}
		}
	}
}

// Close releases the session. Idempotent; the close callback fires at most
// once.
func (t *StreamTransport) Close() error {
	t.shutdown(nil)
	return nil
}

// Compile-time check that StreamTransport satisfies the channel contract.
var _ transport.Transport = (*StreamTransport)(nil)
