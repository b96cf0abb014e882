// Package rpctest provides an in-memory rpc.Dialer for testing code built on
// rpc.Client.
package rpctest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rotkonetworks/gavel/pkg/rpc"
)

var _ rpc.Dialer = (*MockDialer)(nil)

// MockHandler answers one call on a MockDialer. Returning an *rpc.Error
// produces a reply carrying that error object; any other error fails the call
// itself, as a broken connection would.
type MockHandler func(params rpc.Params) (any, error)

// MockDialer is an in-memory rpc.Dialer. It answers calls with registered
// handlers and records every request it receives.
type MockDialer struct {
	mu        sync.Mutex
	handlers  map[rpc.Method]MockHandler
	requests  []*rpc.Request
	connected bool
}

// NewMockDialer creates a disconnected MockDialer without handlers.
func NewMockDialer() *MockDialer {
	return &MockDialer{handlers: make(map[rpc.Method]MockHandler)}
}

// RegisterHandler sets the handler for method. Calls to methods without a
// handler get a -32601 error reply.
func (m *MockDialer) RegisterHandler(method rpc.Method, handler MockHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[method] = handler
}

// Requests returns the requests received so far, in order.
func (m *MockDialer) Requests() []*rpc.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*rpc.Request(nil), m.requests...)
}

// Methods returns the method names of Requests.
func (m *MockDialer) Methods() []string {
	reqs := m.Requests()
	methods := make([]string, len(reqs))
	for i, req := range reqs {
		methods[i] = req.Method
	}
	return methods
}

// Dial marks the dialer connected. The endpoint is ignored.
func (m *MockDialer) Dial(_ context.Context, _ rpc.Endpoint, _ func(err error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return rpc.ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// IsConnected reports whether Dial was called since the last Close.
func (m *MockDialer) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.connected
}

// Close marks the dialer disconnected.
func (m *MockDialer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	return nil
}

// Call records req and answers it with the handler for its method.
func (m *MockDialer) Call(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	if req == nil {
		return nil, rpc.ErrNilRequest
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.IsConnected() {
		return nil, rpc.ErrNotConnected
	}
	return m.reply(req)
}

// Batch answers every request in order, with the same checks on ids as
// WebsocketDialer.Batch.
func (m *MockDialer) Batch(ctx context.Context, reqs []*rpc.Request) (rpc.Replies, error) {
	if len(reqs) == 0 {
		return nil, rpc.ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.IsConnected() {
		return nil, rpc.ErrNotConnected
	}

	replies := make(rpc.Replies, len(reqs))
	for _, req := range reqs {
		if req == nil {
			return nil, rpc.ErrNilRequest
		}
		if _, dup := replies[req.ID]; dup {
			return nil, fmt.Errorf("%w: %q", rpc.ErrDuplicateID, req.ID)
		}
		res, err := m.reply(req)
		if err != nil {
			return nil, err
		}
		replies[req.ID] = res
	}
	return replies, nil
}

func (m *MockDialer) reply(req *rpc.Request) (*rpc.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler, ok := m.handlers[rpc.Method(req.Method)]
	m.mu.Unlock()

	id, err := json.Marshal(req.ID)
	if err != nil {
		return nil, err
	}
	res := &rpc.Response{Version: rpc.Version, ID: id}

	if !ok {
		res.Error = &rpc.Error{Code: -32601, Message: "Method not found"}
		return res, nil
	}

	result, err := handler(req.Params)
	var rpcErr *rpc.Error
	switch {
	case errors.As(err, &rpcErr):
		res.Error = rpcErr
		return res, nil
	case err != nil:
		return nil, err
	}

	if raw, ok := result.(json.RawMessage); ok {
		res.Result = raw
		return res, nil
	}
	if res.Result, err = json.Marshal(result); err != nil {
		return nil, fmt.Errorf("%w: %w", rpc.ErrMarshalingRequest, err)
	}
	return res, nil
}
