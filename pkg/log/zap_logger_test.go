package log_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotkonetworks/gavel/pkg/log"
)

// line returns the line number of its caller.
func line() int {
	_, _, l, _ := runtime.Caller(1)
	return l
}

func TestZapLogger(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug, Output: "stdout"}, tws)

	logger = logger.WithName("dialer")
	kv := []any{"method", "chain_getHead", "id", "a1b2c3"}

	logger.Debug("sent", kv...)
	tws.AssertEntry(t, log.LevelDebug, "dialer", "sent", line()-1, kv...)

	logger.Info("sent", kv...)
	tws.AssertEntry(t, log.LevelInfo, "dialer", "sent", line()-1, kv...)

	logger.Warn("sent", kv...)
	tws.AssertEntry(t, log.LevelWarn, "dialer", "sent", line()-1, kv...)

	logger.Error("sent", kv...)
	tws.AssertEntry(t, log.LevelError, "dialer", "sent", line()-1, kv...)

	logger = logger.WithName("reader")
	assert.Equal(t, "dialer.reader", logger.Name())

	logger = logger.WithKV("endpoint", "wss://node.example:443")
	assert.Equal(t, []any{"endpoint", "wss://node.example:443"}, logger.GetAllKV())
	all := append([]any{"endpoint", "wss://node.example:443"}, kv...)

	logger.Info("sent", kv...)
	tws.AssertEntry(t, log.LevelInfo, "dialer.reader", "sent", line()-1, all...)

	wrapper := func(msg string, kv ...any) {
		logger.AddCallerSkip(1).Info(msg, kv...)
	}
	wrapper("sent", kv...)
	tws.AssertEntry(t, log.LevelInfo, "dialer.reader", "sent", line()-1, all...)
}

func TestZapLogger_LevelFilter(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelWarn, Output: "stdout"}, tws)

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Empty(t, tws.lastEntry)

	logger.Warn("shown")
	assert.Contains(t, string(tws.lastEntry), "shown")
}

func TestZapLogger_Logfmt(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelInfo, Output: "stdout"}, tws)

	logger.Info("connected", "peer", "10.0.0.1:443")
	entry := string(tws.lastEntry)
	assert.Contains(t, entry, "msg=connected")
	assert.Contains(t, entry, "peer=10.0.0.1:443")
}

func TestZapLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gavel.log")
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelInfo, Output: path})

	logger.Info("written")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written"`)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]log.Level{
		"debug":   log.LevelDebug,
		"INFO":    log.LevelInfo,
		" warn ":  log.LevelWarn,
		"warning": log.LevelWarn,
		"Error":   log.LevelError,
		"fatal":   log.LevelFatal,
	} {
		got, err := log.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := log.ParseLevel("verbose")
	assert.Error(t, err)
}

type testWriteSyncer struct {
	lastEntry []byte
}

func (tws *testWriteSyncer) Write(p []byte) (int, error) {
	tws.lastEntry = append([]byte(nil), p...)
	return len(p), nil
}

func (tws *testWriteSyncer) Sync() error { return nil }

func (tws *testWriteSyncer) AssertEntry(t *testing.T, level log.Level, name, msg string, callerLine int, kv ...any) {
	t.Helper()

	entry := make(map[string]any)
	require.NoError(t, json.Unmarshal(tws.lastEntry, &entry), "entry: %s", tws.lastEntry)

	assert.Contains(t, entry, "ts")
	assert.Equal(t, name, entry["logger"])
	assert.Equal(t, string(level), entry["level"])
	assert.Equal(t, msg, entry["msg"])

	caller, _ := entry["caller"].(string)
	assert.True(t, strings.HasSuffix(caller, "zap_logger_test.go:"+strconv.Itoa(callerLine)), "caller %q", caller)

	for i := 0; i+1 < len(kv); i += 2 {
		assert.Equal(t, kv[i+1], entry[kv[i].(string)])
	}
	assert.Equal(t, len(kv)/2, len(entry)-5) // ts, level, logger, caller, msg
}
