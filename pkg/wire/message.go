// Package wire provides the JSON-RPC message envelope and the strict
// codec used by every Relaygate transport.
package wire

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Kind classifies a validated envelope into one of the four JSON-RPC
// message shapes.
type Kind int

const (
	// KindRequest is a method call carrying an id.
	KindRequest Kind = iota
	// KindNotification is a method call without an id.
	KindNotification
	// KindResponse is a successful result correlated by id.
	KindResponse
	// KindError is an error response correlated by id.
	KindError
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Envelope is one validated unit of the wire protocol. It stores both the
// raw bytes (for efficient passthrough) and the decoded message (for
// inspection by upper layers).
type Envelope struct {
	// Raw contains the original bytes of the message. Nil for envelopes
	// constructed in-process rather than parsed off the wire.
	Raw []byte

	// Kind is the validated message shape.
	Kind Kind

	// Decoded is the parsed JSON-RPC message. Always non-nil on an
	// envelope produced by Parse. The concrete type is either
	// *jsonrpc.Request or *jsonrpc.Response.
	Decoded jsonrpc.Message
}

// Request returns the underlying request if this envelope is a request or
// notification, nil otherwise.
func (e *Envelope) Request() *jsonrpc.Request {
	req, _ := e.Decoded.(*jsonrpc.Request)
	return req
}

// Response returns the underlying response if this envelope is a response
// or error response, nil otherwise.
func (e *Envelope) Response() *jsonrpc.Response {
	resp, _ := e.Decoded.(*jsonrpc.Response)
	return resp
}

// Method returns the method name for requests and notifications, empty
// string otherwise.
func (e *Envelope) Method() string {
	if req := e.Request(); req != nil {
		return req.Method
	}
	return ""
}

// RawID extracts the message id from the raw bytes, preserving its
// original JSON form (number, string, or null). Returns nil if the
// envelope has no raw bytes or no id field.
func (e *Envelope) RawID() json.RawMessage {
	if e.Raw == nil {
		return nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(e.Raw, &probe); err != nil {
		return nil
	}
	return probe["id"]
}
