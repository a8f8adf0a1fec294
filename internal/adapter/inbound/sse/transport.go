package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/elnormous/contenttype"

	"github.com/Relay-Gate/Relaygate/internal/domain/session"
	"github.com/Relay-Gate/Relaygate/internal/domain/transport"
	"github.com/Relay-Gate/Relaygate/pkg/wire"
)

// maxMessageSize is the maximum allowed inbound message size (4 MiB).
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

var jsonMediaType = contenttype.NewMediaType("application/json")

// core holds the state and inbound path shared by both SSE variants.
// The variants differ only in how outbound frames reach the peer.
type core struct {
	registry *session.Registry
	postPath string
	logger   *slog.Logger
	metrics  *Metrics

	sessionID  string
	state      atomic.Int32
	registered atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once

	onMessage func(*wire.Envelope)
	onError   func(error)
	onClose   func()
}

func newCore(postPath string, registry *session.Registry, logger *slog.Logger, metrics *Metrics) core {
	if logger == nil {
		logger = slog.Default()
	}
	return core{
		registry: registry,
		postPath: postPath,
		logger:   logger,
		metrics:  metrics,
		done:     make(chan struct{}),
	}
}

// begin transitions Unstarted -> Streaming and assigns the session ID.
// A second begin on the same instance is a caller contract violation and
// panics.
func (c *core) begin() error {
	if !c.state.CompareAndSwap(stateUnstarted, stateStreaming) {
		panic(&transport.StateError{Op: "Start", State: stateString(c.state.Load())})
	}

	id, err := session.GenerateID()
	if err != nil {
		c.state.Store(stateClosed)
		return err
	}
	c.sessionID = id
	return nil
}

// endpointURL is the first-frame payload: the POST path plus the session
// ID as a query parameter, so the peer knows how to address inbound
// messages.
func (c *core) endpointURL() string {
	return c.postPath + "?sessionId=" + url.QueryEscape(c.sessionID)
}

// SessionID returns the session identifier, or "" before Start.
func (c *core) SessionID() string { return c.sessionID }

// Done is closed when the transport reaches the Closed state.
func (c *core) Done() <-chan struct{} { return c.done }

// OnMessage registers the inbound message callback.
func (c *core) OnMessage(fn func(*wire.Envelope)) { c.onMessage = fn }

// OnError registers the recoverable error callback.
func (c *core) OnError(fn func(error)) { c.onError = fn }

// OnClose registers the termination callback.
func (c *core) OnClose(fn func()) { c.onClose = fn }

func (c *core) streaming() bool { return c.state.Load() == stateStreaming }

func (c *core) reportError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

// shutdown drives Streaming -> Closed exactly once, however many triggers
// race. The session is deregistered before the close callback fires so no
// lookup can observe a closed-but-registered transport. releaseSink is the
// variant-specific cleanup and may be nil.
func (c *core) shutdown(releaseSink func()) {
	c.closeOnce.Do(func() {
		c.state.Store(stateClosed)
		if c.registered.Load() {
			c.registry.Remove(c.sessionID)
			if c.metrics != nil {
				c.metrics.ActiveSessions.Dec()
			}
		}
		if releaseSink != nil {
			releaseSink()
		}
		close(c.done)
		if c.onClose != nil {
			c.onClose()
		}
		c.logger.Debug("session closed", "session", session.Digest(c.sessionID))
	})
}

// HandlePostMessage accepts one inbound message addressed to this session.
// It validates the content type, caps the body size, parses the envelope
// strictly, and acknowledges receipt with 202. Acknowledgment means the
// message was accepted, not that the upper layer has processed it.
func (c *core) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	if !c.streaming() {
		// Routing bug on the caller's side, not a peer error: the
		// transport was never started or is already closed.
		c.countRejection("not_started")
		http.Error(w, "SSE transport not started", http.StatusInternalServerError)
		return
	}

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		c.countRejection("content_type")
		http.Error(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMessageSize)
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.countRejection("too_large")
			http.Error(w, "message too large (max 4 MiB)", http.StatusBadRequest)
			return
		}
		c.countRejection("read_error")
		c.reportError(fmt.Errorf("failed to read message body: %w", err))
		http.Error(w, "failed to read message body", http.StatusBadRequest)
		return
	}

	env, err := wire.Parse(body)
	if err != nil {
		c.countRejection("schema")
		c.reportError(err)
		// Echo which payload failed so the peer can debug, but never
		// forward it to the upper layer.
		http.Error(w, fmt.Sprintf("Invalid message: %s", body), http.StatusBadRequest)
		return
	}

	if c.metrics != nil {
		c.metrics.MessagesTotal.WithLabelValues("in").Inc()
	}
	if c.onMessage != nil {
		c.onMessage(env)
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("Accepted"))
}

// register inserts the owning transport into the session registry and
// marks it live for metrics and shutdown bookkeeping.
func (c *core) register(t transport.Transport) {
	c.registry.Add(c.sessionID, t)
	c.registered.Store(true)
	if c.metrics != nil {
		c.metrics.ActiveSessions.Inc()
	}
}

func (c *core) countRejection(reason string) {
	if c.metrics != nil {
		c.metrics.PostRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

// Transport is the direct SSE variant: it frames outbound envelopes as SSE
// events and writes them straight to the caller-owned http.ResponseWriter.
// The caller keeps its handler goroutine alive until Done() is signalled.
type Transport struct {
	core

	w       http.ResponseWriter
	flusher http.Flusher
	writeMu sync.Mutex
}

// NewTransport creates the direct variant over the given response writer.
// The writer must support flushing; plain buffered writers cannot carry a
// live event stream.
func NewTransport(w http.ResponseWriter, postPath string, registry *session.Registry, logger *slog.Logger, metrics *Metrics) (*Transport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	return &Transport{
		core:    newCore(postPath, registry, logger, metrics),
		w:       w,
		flusher: flusher,
	}, nil
}

// Start assigns a fresh session ID, writes the SSE preamble and the
// endpoint event, and registers the session. The transport closes itself
// when ctx is cancelled (peer disconnect or server shutdown).
func (t *Transport) Start(ctx context.Context) error {
	if err := t.begin(); err != nil {
		return err
	}

	h := t.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")

	t.writeMu.Lock()
	_, err := fmt.Fprintf(t.w, "event: endpoint\ndata: %s\n\n", t.endpointURL())
	if err == nil {
		t.flusher.Flush()
	}
	t.writeMu.Unlock()
	if err != nil {
		t.shutdown(nil)
		return fmt.Errorf("failed to write endpoint event: %w", err)
	}

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

// Send writes one envelope as a single atomic SSE message event.
// Concurrent sends are serialized on the write mutex so frames never
// interleave. Returns transport.ErrNotConnected unless streaming.
func (t *Transport) Send(env *wire.Envelope) error {
	if !t.streaming() {
		return transport.ErrNotConnected
	}

	data, err := wire.Encode(env)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	t.writeMu.Lock()
	// Re-check under the mutex: Close drains it before signalling Done,
	// so a write can never land after the stream handler has returned.
	if !t.streaming() {
		t.writeMu.Unlock()
		return transport.ErrNotConnected
	}
	_, err = fmt.Fprintf(t.w, "event: message\ndata: %s\n\n", data)
	if err == nil {
		t.flusher.Flush()
	}
	t.writeMu.Unlock()

	if err != nil {
		// Write failures on the push stream are unrecoverable.
		t.reportError(err)
		_ = t.Close()
		return fmt.Errorf("failed to write message event: %w", err)
	}

	if t.metrics != nil {
		t.metrics.MessagesTotal.WithLabelValues("out").Inc()
	}
	return nil
}

// Close releases the session. Idempotent; the close callback fires at most
// once even when an explicit Close races a peer disconnect. The write mutex
// is drained before Done is signalled, so the response writer is never
// touched once the handler goroutine has been released.
func (t *Transport) Close() error {
	t.shutdown(func() {
		// Barrier: wait out any in-flight frame write.
		t.writeMu.Lock()
		defer t.writeMu.Unlock()
	})
	return nil
}

// Compile-time check that Transport satisfies the channel contract.
var _ transport.Transport = (*Transport)(nil)
