package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rotkonetworks/gavel/pkg/log"
	"github.com/rotkonetworks/gavel/pkg/rpc"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by subcommands once the root command has set it up.
type app struct {
	cfg     Config
	lg      log.Logger
	metrics *Metrics
	tracing *tracing
}

type rootFlags struct {
	output             string
	logLevel           string
	metricsFile        string
	trace              string
	verifyCertificates bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var flags rootFlags

	root := &cobra.Command{
		Use:   "gavel",
		Short: "Fetch blocks and MMR proofs from Substrate nodes over WebSocket JSON-RPC",
		Long: `gavel talks to a Substrate node over one WebSocket JSON-RPC connection.

The endpoint host is resolved through DNS unless --resolve pins an IPv4 address;
the TLS server name and the Host header always use the endpoint host.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.output, "output", OutputJSON, "output format: json or table")
	pf.StringVar(&flags.logLevel, "log-level", string(log.LevelWarn), "log level: debug, info, warn, error")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "write prometheus metrics to this file on exit")
	pf.StringVar(&flags.trace, "trace", "", "export OpenTelemetry spans as JSON to stderr or to this file")
	pf.BoolVar(&flags.verifyCertificates, "verify-certificates", false, "verify the server certificate chain and hostname")

	root.AddCommand(newFetchCmd(a), newMMRCmd(a))
	return root
}

// setup loads configuration, applies explicitly set flags over it and builds
// the logger and metrics.
func (a *app) setup(cmd *cobra.Command, flags rootFlags) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.Output = flags.output
	}
	if changed("log-level") {
		level, err := log.ParseLevel(flags.logLevel)
		if err != nil {
			return err
		}
		cfg.Log.Level = level
	}
	if changed("metrics-file") {
		cfg.MetricsFile = flags.metricsFile
	}
	if changed("trace") {
		cfg.TraceOutput = flags.trace
	}
	if changed("verify-certificates") {
		cfg.VerifyCertificates = flags.verifyCertificates
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.lg = log.NewZapLogger(cfg.Log).WithName("gavel")
	a.metrics = NewMetrics()
	if a.tracing, err = newTracing(cfg.TraceOutput); err != nil {
		return err
	}
	return nil
}

// workflow produces the result printed by a subcommand.
type workflow func(ctx context.Context, svc *BlockService) (json.RawMessage, error)

// run connects to ep, runs fn over the connection, renders its result and
// closes the connection.
func (a *app) run(cmd *cobra.Command, ep rpc.Endpoint, fn workflow) error {
	ctx := log.SetContextLogger(cmd.Context(), a.lg)
	defer a.writeMetrics()
	defer a.shutdownTracing(ctx)

	dialer := rpc.NewWebsocketDialer(a.cfg.DialerConfig())
	err := dialer.Dial(ctx, ep, func(err error) {
		if err != nil {
			a.lg.Debug("connection closed", "error", err)
		}
	})
	a.metrics.ObserveDial(err)
	if err != nil {
		a.lg.Debug("dial failed", "endpoint", ep.String(), "kind", rpc.ErrorKind(err))
		return err
	}
	defer dialer.Close()

	client := rpc.NewClient(a.metrics.Instrument(dialer), a.cfg.IDGenerator())
	result, err := fn(ctx, NewBlockService(client, a.metrics, a.tracing.provider))
	if err != nil {
		a.lg.Debug("workflow failed", "kind", rpc.ErrorKind(err), "error", err)
		return err
	}
	return Render(cmd.OutOrStdout(), a.cfg.Output, result)
}

func (a *app) writeMetrics() {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.lg.Warn("failed to write metrics file", "path", a.cfg.MetricsFile, "error", err)
	}
}

func (a *app) shutdownTracing(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := a.tracing.shutdown(ctx); err != nil {
		a.lg.Warn("failed to flush spans", "error", err)
	}
}
