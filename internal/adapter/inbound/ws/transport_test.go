package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/goleak"

	"github.com/Relay-Gate/Relaygate/internal/domain/transport"
	"github.com/Relay-Gate/Relaygate/pkg/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// wsPair spins up a server that wraps each upgrade in a transport and
// returns the started transport plus a dialed client connection. configure
// runs before Start so callbacks are registered per the channel contract.
func wsPair(t *testing.T, configure func(*Transport)) (*Transport, *websocket.Conn) {
	t.Helper()

	transports := make(chan *Transport, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := Accept(w, r, nil, testLogger())
		if err != nil {
			t.Errorf("Accept() error = %v", err)
			return
		}
		if configure != nil {
			configure(tr)
		}
		if err := tr.Start(context.Background()); err != nil {
			t.Errorf("Start() error = %v", err)
			return
		}
		transports <- tr
		<-tr.Done()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		cancel()
		srv.Close()
		t.Fatalf("Dial() error = %v", err)
	}

	var tr *Transport
	select {
	case tr = <-transports:
	case <-time.After(time.Second):
		t.Fatal("server transport was not created")
	}

	t.Cleanup(func() {
		_ = tr.Close()
		_ = conn.CloseNow()
		cancel()
		srv.Close()
	})
	return tr, conn
}

func TestTransport_DuplexRoundTrip(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	messages := make(chan *wire.Envelope, 1)
	tr, conn := wsPair(t, func(tr *Transport) {
		tr.OnMessage(func(env *wire.Envelope) { messages <- env })
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Client to server.
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)); err != nil {
		t.Fatalf("client Write() error = %v", err)
	}
	select {
	case env := <-messages:
		if env.Method() != "ping" {
			t.Errorf("delivered method = %q, want %q", env.Method(), "ping")
		}
	case <-time.After(time.Second):
		t.Fatal("inbound message was not delivered")
	}

	// Server to client.
	out, err := wire.Parse([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	if err != nil {
		t.Fatalf("wire.Parse() error = %v", err)
	}
	if err := tr.Send(out); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("client Read() error = %v", err)
	}
	if typ != websocket.MessageText {
		t.Errorf("message type = %v, want text", typ)
	}
	encoded, _ := wire.Encode(out)
	if string(data) != string(encoded) {
		t.Errorf("client got %q, want %q", data, encoded)
	}
}

func TestTransport_MalformedMessageSkipped(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	messages := make(chan *wire.Envelope, 1)
	parseErrs := make(chan error, 1)
	_, conn := wsPair(t, func(tr *Transport) {
		tr.OnMessage(func(env *wire.Envelope) { messages <- env })
		tr.OnError(func(err error) { parseErrs <- err })
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte(`not json`)); err != nil {
		t.Fatalf("client Write() error = %v", err)
	}
	select {
	case err := <-parseErrs:
		var schemaErr *wire.SchemaError
		if !errors.As(err, &schemaErr) {
			t.Errorf("onError got %T, want *wire.SchemaError", err)
		}
	case <-time.After(time.Second):
		t.Fatal("malformed message did not reach onError")
	}

	// The connection survives a bad payload.
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"jsonrpc":"2.0","method":"still-alive"}`)); err != nil {
		t.Fatalf("client Write() after bad payload error = %v", err)
	}
	select {
	case env := <-messages:
		if env.Method() != "still-alive" {
			t.Errorf("delivered method = %q, want %q", env.Method(), "still-alive")
		}
	case <-time.After(time.Second):
		t.Fatal("valid message after malformed one was not delivered")
	}
}

func TestTransport_Contract(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	var closeCount atomic.Int32
	tr, conn := wsPair(t, func(tr *Transport) {
		tr.OnClose(func() { closeCount.Add(1) })
	})
	_ = conn

	env, err := wire.Parse([]byte(`{"jsonrpc":"2.0","method":"x"}`))
	if err != nil {
		t.Fatalf("wire.Parse() error = %v", err)
	}

	if len(tr.SessionID()) != 64 {
		t.Errorf("SessionID length = %d, want 64", len(tr.SessionID()))
	}

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("second Start() did not panic")
			} else if _, ok := r.(*transport.StateError); !ok {
				t.Errorf("panic value = %T, want *transport.StateError", r)
			}
		}()
		_ = tr.Start(context.Background())
	}()

	_ = tr.Close()
	_ = tr.Close()

	if n := closeCount.Load(); n != 1 {
		t.Errorf("onClose fired %d times, want exactly 1", n)
	}
	if err := tr.Send(env); !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("Send() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestAccept_OriginAllowlist(t *testing.T) {
	defer goleak.VerifyNone(t)

	accepted := make(chan *Transport, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := Accept(w, r, []string{"app.example.com"}, testLogger())
		if err != nil {
			// Accept has already written the rejection response.
			return
		}
		if err := tr.Start(r.Context()); err != nil {
			t.Errorf("Start() error = %v", err)
			return
		}
		accepted <- tr
		<-tr.Done()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A browser origin outside the allowlist is refused before upgrade.
	badConn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example.com"}},
	})
	if err == nil {
		_ = badConn.CloseNow()
		t.Fatal("Dial() with unlisted origin succeeded")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("rejection status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	// An allowlisted origin connects normally.
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://app.example.com"}},
	})
	if err != nil {
		t.Fatalf("Dial() with allowed origin error = %v", err)
	}

	var tr *Transport
	select {
	case tr = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("allowed origin was not accepted")
	}

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("transport did not close after peer disconnect")
	}
}

func TestTransport_PeerDisconnectCloses(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	tr, conn := wsPair(t, nil)

	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("client Close() error = %v", err)
	}

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("transport did not close after peer disconnect")
	}
}
