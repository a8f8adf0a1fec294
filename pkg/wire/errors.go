package wire

import "fmt"

// JSON-RPC 2.0 standard error codes, per
// https://www.jsonrpc.org/specification#error_object
const (
	// ErrCodeParseError indicates invalid JSON was received.
	ErrCodeParseError = -32700

	// ErrCodeInvalidRequest indicates the JSON is not a valid message object.
	ErrCodeInvalidRequest = -32600
)

// SchemaError reports a payload that does not conform to any of the four
// JSON-RPC message shapes. The Message field is safe to surface verbatim
// to the remote peer; it never carries internal detail.
type SchemaError struct {
	// Code is the JSON-RPC error code.
	Code int

	// Message is a client-facing description of the failure.
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error %d: %s", e.Code, e.Message)
}

func newSchemaError(code int, message string) *SchemaError {
	return &SchemaError{Code: code, Message: message}
}
