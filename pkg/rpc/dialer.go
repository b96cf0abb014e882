package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rotkonetworks/gavel/pkg/log"
)

// Dialer is the interface for RPC client connections.
type Dialer interface {
	// Dial establishes a connection to ep and starts the background read loop.
	// It returns once the connection is usable. handleClosure, when not nil, is
	// invoked once after the connection is gone, with the first error seen.
	// Cancelling ctx closes the connection.
	Dial(ctx context.Context, ep Endpoint, handleClosure func(err error)) error

	// IsConnected returns true if the dialer has an active connection.
	IsConnected() bool

	// Call sends req and waits for the reply carrying the same id.
	Call(ctx context.Context, req *Request) (*Response, error)

	// Batch sends reqs as one array frame and waits until a reply for every id
	// has been observed, however the server splits them across frames.
	Batch(ctx context.Context, reqs []*Request) (Replies, error)

	// Close closes the connection and waits for the background goroutines.
	Close() error
}

// replySlot receives exactly one slotResult. It is buffered so the read loop
// never blocks on delivery.
type replySlot chan slotResult

type slotResult struct {
	res *Response
	err error
}

// dialCtx holds the connection context and resources
type dialCtx struct {
	ctx    context.Context         // cancelled with the closure cause
	cancel context.CancelCauseFunc // closes the connection
	done   chan struct{}           // closed once background goroutines exit
	conn   *websocket.Conn
	lg     log.Logger
}

// WebsocketDialer implements the Dialer interface over a single WebSocket
// connection. It is safe for concurrent use.
type WebsocketDialer struct {
	cfg     WebsocketDialerConfig
	dialCtx *dialCtx
	pending map[string]replySlot // outstanding request ids
	mu      sync.RWMutex         // protects dialCtx and pending
	writeMu sync.Mutex           // serializes frame writes
}

var _ Dialer = (*WebsocketDialer)(nil)

// NewWebsocketDialer creates a new WebSocket dialer with the given configuration
func NewWebsocketDialer(cfg WebsocketDialerConfig) *WebsocketDialer {
	return &WebsocketDialer{
		cfg:     cfg,
		pending: make(map[string]replySlot),
	}
}

// Dial connects to ep and starts the read loop. It fails with
// ErrAlreadyConnected while a previous connection is still open.
func (d *WebsocketDialer) Dial(parentCtx context.Context, ep Endpoint, handleClosure func(err error)) error {
	if d.IsConnected() {
		return ErrAlreadyConnected
	}

	lg := log.FromContext(parentCtx).WithName("ws-dialer").WithKV("endpoint", ep.String())
	conn, err := establish(parentCtx, lg, ep, d.cfg)
	if err != nil {
		return err
	}

	childCtx, cancel := context.WithCancelCause(parentCtx)
	done := make(chan struct{})
	wg := sync.WaitGroup{}
	wg.Add(2)

	var closureErr error
	var closureErrMu sync.Mutex
	childHandleClosure := func(err error) {
		closureErrMu.Lock()
		if err != nil && closureErr == nil {
			closureErr = err
		}
		closureErrMu.Unlock()

		// Only the first cause sticks.
		if err != nil && !errors.Is(err, ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrClosed, err)
		}
		if err == nil {
			err = ErrClosed
		}
		cancel(err)
		wg.Done()
	}

	d.mu.Lock()
	d.dialCtx = &dialCtx{
		ctx:    childCtx,
		cancel: cancel,
		done:   done,
		conn:   conn,
		lg:     lg,
	}
	d.pending = make(map[string]replySlot)
	d.mu.Unlock()

	go d.closeOnContextDone(childCtx, conn, childHandleClosure)
	go d.readMessages(childCtx, conn, lg, childHandleClosure)

	go func() {
		wg.Wait()
		close(done)

		if handleClosure != nil {
			closureErrMu.Lock()
			defer closureErrMu.Unlock()
			handleClosure(closureErr)
		}
	}()

	lg.Debug("connected")
	return nil
}

// IsConnected returns true if the dialer has an active connection
func (d *WebsocketDialer) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.dialCtx != nil && d.dialCtx.ctx.Err() == nil
}

// Close is a no-op when the dialer was never connected.
func (d *WebsocketDialer) Close() error {
	d.mu.RLock()
	dc := d.dialCtx
	d.mu.RUnlock()

	if dc == nil {
		return nil
	}
	dc.cancel(ErrClosed)
	<-dc.done
	return nil
}

// closeOnContextDone waits for the context to be done and then closes the connection
func (d *WebsocketDialer) closeOnContextDone(ctx context.Context, conn *websocket.Conn, handleClosure func(err error)) {
	<-ctx.Done()

	// Best effort; the peer may already be gone.
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := conn.Close()

	// Waiters observe ctx themselves; only the table needs resetting.
	d.mu.Lock()
	d.pending = make(map[string]replySlot)
	d.mu.Unlock()

	handleClosure(err)
}

// readMessages reads frames until the connection fails, delivering every reply
// to the slot registered under its id.
func (d *WebsocketDialer) readMessages(ctx context.Context, conn *websocket.Conn, lg log.Logger, handleClosure func(err error)) {
	for {
		msgType, data, err := conn.ReadMessage()
		if ctx.Err() != nil {
			lg.Debug("read loop exiting due to context done")
			handleClosure(nil)
			return
		} else if err != nil {
			lg.Debug("websocket read failed", "error", err)
			handleClosure(fmt.Errorf("%w: %w", ErrClosed, err))
			return
		}

		if msgType != websocket.TextMessage {
			lg.Debug("discarding non-text frame", "type", msgType, "size", len(data))
			continue
		}

		msgs, err := splitFrame(data)
		if err != nil {
			lg.Warn("malformed frame", "error", err, "size", len(data))
			d.failPending(err)
			continue
		}
		for _, msg := range msgs {
			d.deliver(lg, msg)
		}
	}
}

// deliver hands msg to the call waiting for its id. Messages without a string
// id, or with an id nobody waits for, are discarded. A matched message that is
// not a valid reply fails only that call.
func (d *WebsocketDialer) deliver(lg log.Logger, msg json.RawMessage) {
	id, ok := messageID(msg)
	if !ok {
		lg.Debug("discarding message without request id", "size", len(msg))
		return
	}

	d.mu.Lock()
	slot, exists := d.pending[id]
	if exists {
		delete(d.pending, id)
	}
	d.mu.Unlock()

	if !exists {
		lg.Debug("discarding unmatched reply", "id", id)
		return
	}

	res, err := decodeResponse(id, msg)
	if err != nil {
		lg.Warn("undecodable reply", "id", id, "error", err)
	}
	slot <- slotResult{res: res, err: err}
}

// failPending fails and forgets every outstanding call.
func (d *WebsocketDialer) failPending(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, slot := range d.pending {
		slot <- slotResult{err: err}
	}
	d.pending = make(map[string]replySlot)
}

// Call sends an RPC request and waits for a response.
// The request id must not be outstanding on this connection.
//
// The context can be used to set a timeout for the request:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	resp, err := dialer.Call(ctx, request)
func (d *WebsocketDialer) Call(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	replies, err := d.roundTrip(ctx, []string{req.ID}, req)
	if err != nil {
		return nil, err
	}
	return replies[req.ID], nil
}

// Batch sends reqs as one array frame and waits for a reply to every id. Ids
// must be distinct and not outstanding on this connection.
func (d *WebsocketDialer) Batch(ctx context.Context, reqs []*Request) (Replies, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}

	ids := make([]string, 0, len(reqs))
	seen := make(map[string]struct{}, len(reqs))
	for _, req := range reqs {
		if req == nil {
			return nil, ErrNilRequest
		}
		if _, dup := seen[req.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, req.ID)
		}
		seen[req.ID] = struct{}{}
		ids = append(ids, req.ID)
	}

	return d.roundTrip(ctx, ids, reqs)
}

// roundTrip registers a slot per id, writes payload as one text frame and
// collects a reply for every id.
func (d *WebsocketDialer) roundTrip(ctx context.Context, ids []string, payload any) (Replies, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshalingRequest, err)
	}

	d.mu.Lock()
	if d.dialCtx == nil || d.dialCtx.ctx.Err() != nil {
		d.mu.Unlock()
		return nil, ErrNotConnected
	}
	for _, id := range ids {
		if _, dup := d.pending[id]; dup {
			d.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
	}
	slots := make(map[string]replySlot, len(ids))
	for _, id := range ids {
		slot := make(replySlot, 1)
		d.pending[id] = slot
		slots[id] = slot
	}
	conn := d.dialCtx.conn
	connCtx := d.dialCtx.ctx
	lg := d.dialCtx.lg
	d.mu.Unlock()

	defer d.release(slots)

	if err := d.write(ctx, conn, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}
	lg.Debug("request sent", "ids", ids, "size", len(data))

	replies := make(Replies, len(ids))
	for _, id := range ids {
		var r slotResult
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r = <-slots[id]:
		case <-connCtx.Done():
			// A reply delivered just before the close still counts.
			select {
			case r = <-slots[id]:
			default:
				return nil, closedErr(connCtx)
			}
		}
		if r.err != nil {
			return nil, r.err
		}
		replies[id] = r.res
	}
	return replies, nil
}

// release removes the slots that were not fulfilled.
func (d *WebsocketDialer) release(slots map[string]replySlot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, slot := range slots {
		if cur, ok := d.pending[id]; ok && cur == slot {
			delete(d.pending, id)
		}
	}
}

func (d *WebsocketDialer) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	var deadline time.Time
	if d.cfg.WriteTimeout > 0 {
		deadline = time.Now().Add(d.cfg.WriteTimeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func closedErr(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrClosed) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrClosed, cause)
}
