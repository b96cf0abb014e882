package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rotkonetworks/gavel/pkg/log"
	"github.com/rotkonetworks/gavel/pkg/rpc"
)

const (
	workflowFetch = "fetch"
	workflowMMR   = "mmr"

	metadataKey = "metadata"

	tracerName = "github.com/rotkonetworks/gavel"
)

// BlockService runs the block and proof workflows over one connected client.
type BlockService struct {
	client  *rpc.Client
	metrics *Metrics
	tracer  trace.Tracer
}

// NewBlockService creates a service over client. Spans go to tp, or to the
// global provider when tp is nil; metrics may be nil.
func NewBlockService(client *rpc.Client, metrics *Metrics, tp trace.TracerProvider) *BlockService {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &BlockService{
		client:  client,
		metrics: metrics,
		tracer:  tp.Tracer(tracerName),
	}
}

// FetchBlock returns the block at number, or the best block when number is
// empty. With withMetadata the node info is added under "metadata".
func (s *BlockService) FetchBlock(ctx context.Context, number string, withMetadata bool) (block json.RawMessage, err error) {
	ctx, span := s.tracer.Start(ctx, "FetchBlock", trace.WithAttributes(
		attribute.String("block.number", number),
		attribute.Bool("metadata", withMetadata),
	))
	defer func() { s.finish(span, workflowFetch, err) }()

	ctx = log.SetContextLogger(ctx, log.FromContext(ctx).WithName(workflowFetch))
	lg := log.FromContext(ctx)

	var hash string
	if number != "" {
		quantity, err := NormalizeBlockNumber(number)
		if err != nil {
			return nil, err
		}
		lg.Debug("looking up block hash", "number", quantity)
		if hash, err = s.client.GetBlockHash(ctx, quantity); err != nil {
			return nil, err
		}
	} else {
		lg.Debug("looking up best block")
		if hash, err = s.client.GetHead(ctx); err != nil {
			return nil, err
		}
	}

	lg.Debug("fetching block", "hash", hash)
	if block, err = s.client.GetBlock(ctx, hash); err != nil {
		return nil, err
	}
	if !withMetadata {
		return block, nil
	}

	lg.Debug("fetching node metadata")
	info, err := s.client.GetNodeInfo(ctx)
	if err != nil {
		return nil, err
	}
	return mergeMetadata(block, info)
}

// FetchMMRProof generates a proof for numbers. Without numbers the proof is
// for the height of the best block.
func (s *BlockService) FetchMMRProof(ctx context.Context, numbers []uint64) (proof json.RawMessage, err error) {
	ctx, span := s.tracer.Start(ctx, "FetchMMRProof", trace.WithAttributes(
		attribute.Int("block.count", len(numbers)),
	))
	defer func() { s.finish(span, workflowMMR, err) }()

	ctx = log.SetContextLogger(ctx, log.FromContext(ctx).WithName(workflowMMR))
	lg := log.FromContext(ctx)

	if len(numbers) == 0 {
		lg.Debug("looking up best block")
		hash, err := s.client.GetHead(ctx)
		if err != nil {
			return nil, err
		}
		height, err := s.client.GetBlockNumber(ctx, hash)
		if err != nil {
			return nil, err
		}
		lg.Debug("using best block height", "hash", hash, "height", height)
		numbers = []uint64{height}
	}

	lg.Debug("generating proof", "numbers", numbers)
	return s.client.GenerateMMRProof(ctx, numbers)
}

func (s *BlockService) finish(span trace.Span, workflow string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("outcome", rpc.ErrorKind(err)))
	span.End()

	if s.metrics != nil {
		s.metrics.ObserveWorkflow(workflow, err)
	}
}

// mergeMetadata adds info to block under metadataKey. A null block becomes an
// object holding only the metadata.
func mergeMetadata(block json.RawMessage, info rpc.NodeInfo) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if trimmed := bytes.TrimSpace(block); !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("%w: block is not an object: %w", rpc.ErrMalformedFrame, err)
		}
	}

	meta, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	fields[metadataKey] = meta
	return json.Marshal(fields)
}
