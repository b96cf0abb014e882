package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// Endpoint and transport errors
	ErrAddress = fmt.Errorf("invalid or unresolvable address")
	ErrConnect = fmt.Errorf("tcp connect failed")
	ErrTLS     = fmt.Errorf("tls handshake failed")
	ErrUpgrade = fmt.Errorf("websocket upgrade failed")

	// Connection state errors
	ErrClosed           = fmt.Errorf("connection closed")
	ErrAlreadyConnected = fmt.Errorf("already connected")
	ErrNotConnected     = fmt.Errorf("%w: not connected to server", ErrClosed)

	// Request/Response errors
	ErrNilRequest        = fmt.Errorf("nil request")
	ErrEmptyBatch        = fmt.Errorf("empty batch")
	ErrDuplicateID       = fmt.Errorf("duplicate request id")
	ErrMarshalingRequest = fmt.Errorf("error marshaling request")
	ErrSendingRequest    = fmt.Errorf("error sending request")
	ErrMalformedFrame    = fmt.Errorf("malformed frame")

	// Payload errors
	ErrNumericFormat = fmt.Errorf("invalid numeric format")
)

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ErrorKind returns a short label for the category of err. It is used as a log
// field and as a metric label.
func ErrorKind(err error) string {
	var rpcErr *Error
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rpcErr):
		return "rpc"
	case errors.Is(err, ErrAddress):
		return "address"
	case errors.Is(err, ErrConnect):
		return "connect"
	case errors.Is(err, ErrTLS):
		return "tls"
	case errors.Is(err, ErrUpgrade):
		return "upgrade"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrMalformedFrame):
		return "malformed"
	case errors.Is(err, ErrNumericFormat):
		return "numeric"
	default:
		return "other"
	}
}
