package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version sent with every request.
const Version = "2.0"

// Params are the positional parameters of a request. They always encode as a
// JSON array, an empty one when nil.
type Params []any

func (p Params) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]any(p))
}

// Request is an outbound JSON-RPC call.
type Request struct {
	Version string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  Params `json:"params"`
}

// NewRequest builds a request for method with the given id and params.
func NewRequest(id string, method Method, params ...any) *Request {
	return &Request{
		Version: Version,
		ID:      id,
		Method:  method.String(),
		Params:  Params(params),
	}
}

// Response is any inbound JSON-RPC message: a reply carrying result or error, or
// a notification carrying method and params.
type Response struct {
	Version string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// RequestID returns the id of a reply. Only string ids can match a request
// issued by this package; ok is false otherwise.
func (r *Response) RequestID() (id string, ok bool) {
	raw := bytes.TrimSpace(r.ID)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", false
	}
	return id, true
}

// Payload returns the result of a reply. A reply carrying an error object
// returns it as *Error. A reply with neither field fails with ErrMalformedFrame;
// an explicit null result is valid.
func (r *Response) Payload() (json.RawMessage, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	if r.Result == nil {
		return nil, fmt.Errorf("%w: reply %s has neither result nor error", ErrMalformedFrame, r.ID)
	}
	return r.Result, nil
}

// Replies maps request ids to their replies.
type Replies map[string]*Response

// Result returns the payload of the reply for id.
func (r Replies) Result(id string) (json.RawMessage, error) {
	res, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("%w: no reply for id %q", ErrMalformedFrame, id)
	}
	return res.Payload()
}

// splitFrame splits one inbound text frame into its messages without decoding
// them. A frame holds a single value or a batch array. Only a frame that is not
// valid JSON is an error; element shapes are checked once an id matches.
func splitFrame(data []byte) ([]json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedFrame)
	}
	if !isBatch(data) {
		return []json.RawMessage{data}, nil
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return batch, nil
}

// messageID returns the string id of a raw message. Scalars, arrays, null and
// objects without a string id yield ok == false.
func messageID(raw json.RawMessage) (id string, ok bool) {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", false
	}
	return (&Response{ID: envelope.ID}).RequestID()
}

// decodeResponse decodes a message whose id matched an outstanding call.
func decodeResponse(id string, raw json.RawMessage) (*Response, error) {
	var res Response
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: reply %q: %w", ErrMalformedFrame, id, err)
	}
	return &res, nil
}

// isBatch reports whether raw is a JSON array, ignoring leading whitespace.
func isBatch(raw []byte) bool {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	return len(raw) > 0 && raw[0] == '['
}
