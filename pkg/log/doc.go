// Package log provides the structured, context-aware logger used across gavel.
//
// Components never reach for a global logger. The command builds one Logger from
// Config, stores it in the context with SetContextLogger, and every layer below
// picks it up with FromContext, adding its own name:
//
//	lg := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelDebug})
//	ctx = log.SetContextLogger(ctx, lg)
//	...
//	log.FromContext(ctx).WithName("ws-dialer").Debug("frame discarded", "id", id)
//
// # Implementations
//
//   - ZapLogger writes console, json or logfmt lines through go.uber.org/zap.
//   - NoopLogger drops everything; FromContext returns it when nothing is set.
//   - SpanLogger forwards every entry to a wrapped Logger and mirrors it as an
//     event on an OpenTelemetry span. SetContextLogger installs it automatically
//     when the context carries a valid span.
//
// # Output
//
// Results are printed on stdout by the command, so the default output for logs is
// stderr. A file path may be given instead; the parent directory is created.
package log
