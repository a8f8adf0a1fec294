package wire

import (
	"bytes"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Parse decodes and validates a single JSON-RPC message. It is strict: a
// payload that matches none of the four message shapes is rejected with a
// *SchemaError and never reaches the upper protocol layer.
//
// Parse is pure validation. It does not mutate its input and has no side
// effects.
func Parse(raw []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, newSchemaError(ErrCodeParseError, "empty message")
	}
	if !json.Valid(trimmed) {
		return nil, newSchemaError(ErrCodeParseError, "invalid JSON")
	}
	if trimmed[0] != '{' {
		return nil, newSchemaError(ErrCodeInvalidRequest, "message must be a JSON object")
	}

	var version struct {
		JSONRPC string `json:"jsonrpc"`
	}
	if err := json.Unmarshal(trimmed, &version); err != nil || version.JSONRPC != "2.0" {
		return nil, newSchemaError(ErrCodeInvalidRequest, `missing or invalid jsonrpc version (must be "2.0")`)
	}

	decoded, err := jsonrpc.DecodeMessage(trimmed)
	if err != nil {
		return nil, newSchemaError(ErrCodeInvalidRequest, "message matches no JSON-RPC shape")
	}

	kind, err := classify(decoded)
	if err != nil {
		return nil, err
	}

	return &Envelope{Raw: raw, Kind: kind, Decoded: decoded}, nil
}

// classify determines the message shape and enforces the per-shape
// structural rules.
func classify(msg jsonrpc.Message) (Kind, error) {
	switch m := msg.(type) {
	case *jsonrpc.Request:
		if m.Method == "" {
			return 0, newSchemaError(ErrCodeInvalidRequest, "missing method field")
		}
		// In the SDK, a notification is a request with no id.
		if m.IsCall() {
			return KindRequest, nil
		}
		return KindNotification, nil

	case *jsonrpc.Response:
		if !m.ID.IsValid() {
			return 0, newSchemaError(ErrCodeInvalidRequest, "response missing id")
		}
		hasResult := m.Result != nil
		hasError := m.Error != nil
		if hasResult && hasError {
			return 0, newSchemaError(ErrCodeInvalidRequest, "response carries both result and error")
		}
		if !hasResult && !hasError {
			return 0, newSchemaError(ErrCodeInvalidRequest, "response carries neither result nor error")
		}
		if hasError {
			return KindError, nil
		}
		return KindResponse, nil

	default:
		return 0, newSchemaError(ErrCodeInvalidRequest, "message matches no JSON-RPC shape")
	}
}

// Encode serializes the envelope back to its wire format.
func Encode(e *Envelope) ([]byte, error) {
	return jsonrpc.EncodeMessage(e.Decoded)
}

// FromMessage wraps an in-process JSON-RPC message in an Envelope,
// classifying it the same way Parse does.
func FromMessage(msg jsonrpc.Message) (*Envelope, error) {
	kind, err := classify(msg)
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: kind, Decoded: msg}, nil
}
