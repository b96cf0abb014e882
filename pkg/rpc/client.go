package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/rotkonetworks/gavel/pkg/log"
)

// Client issues JSON-RPC calls through a Dialer, assigning correlation ids and
// unwrapping results.
type Client struct {
	dialer Dialer
	nextID IDGenerator
}

// NewClient creates a client on top of a connected dialer. RandomID is used
// when idgen is nil.
func NewClient(dialer Dialer, idgen IDGenerator) *Client {
	if idgen == nil {
		idgen = RandomID
	}
	return &Client{dialer: dialer, nextID: idgen}
}

// Call invokes method and returns the raw result. An error object in the reply
// is returned as *Error.
func (c *Client) Call(ctx context.Context, method Method, params ...any) (json.RawMessage, error) {
	req := NewRequest(c.nextID(), method, params...)
	log.FromContext(ctx).Debug("rpc call", "method", method, "id", req.ID)

	res, err := c.dialer.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Payload()
}

// BatchElem is one call of a batch. An empty ID is filled in by Client.Batch.
type BatchElem struct {
	ID     string
	Method Method
	Params []any
}

// Batch sends elems as one batch frame. Empty ids are assigned in place, so the
// caller can look replies up by elems[i].ID afterwards.
func (c *Client) Batch(ctx context.Context, elems []BatchElem) (Replies, error) {
	if len(elems) == 0 {
		return nil, ErrEmptyBatch
	}

	used := make(map[string]struct{}, len(elems))
	for _, elem := range elems {
		if elem.ID == "" {
			continue
		}
		if _, dup := used[elem.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, elem.ID)
		}
		used[elem.ID] = struct{}{}
	}

	reqs := make([]*Request, len(elems))
	for i := range elems {
		for elems[i].ID == "" {
			id := c.nextID()
			if _, taken := used[id]; !taken {
				used[id] = struct{}{}
				elems[i].ID = id
			}
		}
		reqs[i] = NewRequest(elems[i].ID, elems[i].Method, elems[i].Params...)
	}

	log.FromContext(ctx).Debug("rpc batch", "size", len(reqs))
	return c.dialer.Batch(ctx, reqs)
}

// ============================================================================
// Chain
// ============================================================================

// GetHead returns the hash of the best block.
func (c *Client) GetHead(ctx context.Context) (string, error) {
	return c.callHash(ctx, ChainGetHeadMethod)
}

// GetBlockHash returns the hash of the block at number, a 0x-prefixed hex
// quantity. An empty number asks for the best block.
func (c *Client) GetBlockHash(ctx context.Context, number string) (string, error) {
	if number == "" {
		return c.callHash(ctx, ChainGetBlockHashMethod)
	}
	return c.callHash(ctx, ChainGetBlockHashMethod, number)
}

// GetFinalizedHead returns the hash of the last finalized block.
func (c *Client) GetFinalizedHead(ctx context.Context) (string, error) {
	return c.callHash(ctx, ChainGetFinalizedHeadMethod)
}

// GetBlock returns the block for hash as the node sent it.
func (c *Client) GetBlock(ctx context.Context, hash string) (json.RawMessage, error) {
	return c.Call(ctx, ChainGetBlockMethod, hash)
}

// GetBlockNumber fetches the block for hash and decodes block.header.number.
func (c *Client) GetBlockNumber(ctx context.Context, hash string) (uint64, error) {
	raw, err := c.GetBlock(ctx, hash)
	if err != nil {
		return 0, err
	}

	var signed struct {
		Block *struct {
			Header *struct {
				Number json.RawMessage `json:"number"`
			} `json:"header"`
		} `json:"block"`
	}
	if err := json.Unmarshal(raw, &signed); err != nil {
		return 0, fmt.Errorf("%w: block %s: %w", ErrMalformedFrame, hash, err)
	}
	if signed.Block == nil || signed.Block.Header == nil || len(signed.Block.Header.Number) == 0 {
		return 0, fmt.Errorf("%w: block %s has no block.header.number", ErrMalformedFrame, hash)
	}

	var quantity string
	if err := json.Unmarshal(signed.Block.Header.Number, &quantity); err != nil {
		return 0, fmt.Errorf("%w: block number %s is not a hex string", ErrNumericFormat, signed.Block.Header.Number)
	}
	n, err := hexutil.DecodeUint64(quantity)
	if err != nil {
		return 0, fmt.Errorf("%w: block number %q: %w", ErrNumericFormat, quantity, err)
	}
	return n, nil
}

// callHash invokes a method whose result must be a hash string.
func (c *Client) callHash(ctx context.Context, method Method, params ...any) (string, error) {
	raw, err := c.Call(ctx, method, params...)
	if err != nil {
		return "", err
	}
	return decodeString(method, raw)
}

func decodeString(method Method, raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", fmt.Errorf("%w: %s returned %s, expected a string", ErrMalformedFrame, method, raw)
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrMalformedFrame, method, err)
	}
	return s, nil
}

// ============================================================================
// MMR
// ============================================================================

// GenerateMMRProof requests a proof for numbers, sent as params [[n1, n2, ...]].
func (c *Client) GenerateMMRProof(ctx context.Context, numbers []uint64) (json.RawMessage, error) {
	if numbers == nil {
		numbers = []uint64{}
	}
	return c.Call(ctx, MMRGenerateProofMethod, numbers)
}

// ============================================================================
// Node info
// ============================================================================

// GetNodeInfo collects node metadata with a single batch. The first failing
// call fails the whole lookup.
func (c *Client) GetNodeInfo(ctx context.Context) (NodeInfo, error) {
	var info NodeInfo
	fields := []struct {
		method Method
		decode func(Method, json.RawMessage) error
	}{
		{SystemVersionMethod, intoString(&info.Version)},
		{SystemNameMethod, intoString(&info.Name)},
		{SystemChainMethod, intoString(&info.Chain)},
		{SystemHealthMethod, intoRaw(&info.Health)},
		{ChainGetFinalizedHeadMethod, intoString(&info.FinalizedHead)},
		{SystemPeersMethod, intoRaw(&info.Peers)},
		{SystemSyncStateMethod, intoRaw(&info.SyncState)},
		{StateGetRuntimeVersionMethod, intoRaw(&info.RuntimeVersion)},
	}

	elems := make([]BatchElem, len(fields))
	for i, f := range fields {
		elems[i] = BatchElem{Method: f.method}
	}
	replies, err := c.Batch(ctx, elems)
	if err != nil {
		return NodeInfo{}, err
	}

	for i, f := range fields {
		raw, err := replies.Result(elems[i].ID)
		if err != nil {
			return NodeInfo{}, fmt.Errorf("%s: %w", f.method, err)
		}
		if err := f.decode(f.method, raw); err != nil {
			return NodeInfo{}, err
		}
	}
	return info, nil
}

func intoString(dst *string) func(Method, json.RawMessage) error {
	return func(method Method, raw json.RawMessage) (err error) {
		*dst, err = decodeString(method, raw)
		return err
	}
}

func intoRaw(dst *json.RawMessage) func(Method, json.RawMessage) error {
	return func(_ Method, raw json.RawMessage) error {
		*dst = raw
		return nil
	}
}
