package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rotkonetworks/gavel/pkg/rpc"
)

// Metrics contains all Prometheus metrics for one gavel invocation
type Metrics struct {
	registry *prometheus.Registry

	// Connection metrics
	Dials *prometheus.CounterVec

	// RPC metrics
	RPCCalls        *prometheus.CounterVec
	RPCCallDuration *prometheus.HistogramVec

	// Workflow metrics
	Workflows *prometheus.CounterVec
}

// NewMetrics registers the metrics on a private registry, so nothing leaks
// into the default one.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Dials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gavel_dial_total",
			Help: "Connection attempts by outcome",
		}, []string{"outcome"}),
		RPCCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gavel_rpc_calls_total",
			Help: "JSON-RPC calls by method and outcome",
		}, []string{"method", "outcome"}),
		RPCCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gavel_rpc_call_duration_seconds",
			Help:    "Round trip time of JSON-RPC calls",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method"}),
		Workflows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gavel_workflows_total",
			Help: "Workflows run by name and outcome",
		}, []string{"workflow", "outcome"}),
	}
}

// ObserveDial counts a connection attempt by the kind of err.
func (m *Metrics) ObserveDial(err error) {
	m.Dials.WithLabelValues(rpc.ErrorKind(err)).Inc()
}

// ObserveCall counts a round trip of method and records its duration since start.
func (m *Metrics) ObserveCall(method string, start time.Time, err error) {
	m.RPCCalls.WithLabelValues(method, rpc.ErrorKind(err)).Inc()
	m.RPCCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// ObserveWorkflow counts a finished workflow by the kind of err.
func (m *Metrics) ObserveWorkflow(workflow string, err error) {
	m.Workflows.WithLabelValues(workflow, rpc.ErrorKind(err)).Inc()
}

// WriteTextfile writes every metric to path in the text exposition format, for
// the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Instrument wraps d so every call and batch is counted and timed.
func (m *Metrics) Instrument(d rpc.Dialer) rpc.Dialer {
	return &instrumentedDialer{Dialer: d, metrics: m}
}

type instrumentedDialer struct {
	rpc.Dialer
	metrics *Metrics
}

// batchMethod labels batch round trips; their members are counted one by one.
const batchMethod = "batch"

func (d *instrumentedDialer) Call(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	start := time.Now()
	res, err := d.Dialer.Call(ctx, req)

	method := "unknown"
	if req != nil {
		method = req.Method
	}
	outcome := err
	if err == nil && res.Error != nil {
		outcome = res.Error
	}
	d.metrics.ObserveCall(method, start, outcome)
	return res, err
}

func (d *instrumentedDialer) Batch(ctx context.Context, reqs []*rpc.Request) (rpc.Replies, error) {
	start := time.Now()
	replies, err := d.Dialer.Batch(ctx, reqs)
	d.metrics.ObserveCall(batchMethod, start, err)
	if err != nil {
		return replies, err
	}

	for _, req := range reqs {
		var callErr error
		if res, ok := replies[req.ID]; ok && res.Error != nil {
			callErr = res.Error
		}
		d.metrics.RPCCalls.WithLabelValues(req.Method, rpc.ErrorKind(callErr)).Inc()
	}
	return replies, nil
}
