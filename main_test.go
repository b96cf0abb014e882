package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotkonetworks/gavel/pkg/rpc"
)

// nodeStub is a WebSocket JSON-RPC server answering from a fixed result table.
type nodeStub struct {
	results map[string]any

	mu      sync.Mutex
	methods []string
	params  []string
	hosts   []string
}

func (n *nodeStub) record(host string, req rpc.Request) {
	params, _ := json.Marshal(req.Params)

	n.mu.Lock()
	defer n.mu.Unlock()

	n.hosts = append(n.hosts, host)
	n.methods = append(n.methods, req.Method)
	n.params = append(n.params, string(params))
}

func (n *nodeStub) Params() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.params...)
}

func (n *nodeStub) Methods() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.methods...)
}

func (n *nodeStub) Hosts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.hosts...)
}

func (n *nodeStub) reply(req rpc.Request) map[string]any {
	res := map[string]any{"jsonrpc": rpc.Version, "id": req.ID}
	if result, ok := n.results[req.Method]; ok {
		res["result"] = result
	} else {
		res["error"] = map[string]any{"code": -32601, "message": "Method not found"}
	}
	return res
}

func (n *nodeStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var out any
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
			var reqs []rpc.Request
			if err := json.Unmarshal(data, &reqs); err != nil {
				return
			}
			replies := make([]map[string]any, len(reqs))
			for i, req := range reqs {
				n.record(r.Host, req)
				replies[i] = n.reply(req)
			}
			out = replies
		} else {
			var req rpc.Request
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}
			n.record(r.Host, req)
			out = n.reply(req)
		}

		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}

func startNode(t *testing.T) (*nodeStub, string) {
	t.Helper()

	node := &nodeStub{results: map[string]any{
		"chain_getHead":      testHeadHash,
		"chain_getBlockHash": testHeadHash,
		"chain_getBlock":     json.RawMessage(testBlock),
		"mmr_generateProof":  map[string]any{"blockHash": testHeadHash, "leaves": "0x04", "proof": "0x00"},
	}}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return node, u.Port()
}

// runGavel executes the root command with a clean configuration directory.
func runGavel(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv(configDirPathEnv, t.TempDir())
	t.Setenv("GAVEL_REQUEST_IDS", RequestIDsSequential)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(testCtx)
	return out.String(), err
}

func TestCLI_FetchByNumber(t *testing.T) {
	node, port := startNode(t)

	out, err := runGavel(t, "fetch", "ws://node.invalid:"+port, "26", "--resolve", "127.0.0.1")
	require.NoError(t, err)

	assert.JSONEq(t, testBlock, out)
	assert.Equal(t, []string{"chain_getBlockHash", "chain_getBlock"}, node.Methods())
	for _, host := range node.Hosts() {
		assert.Equal(t, "node.invalid:"+port, host, "Host header keeps the endpoint name")
	}
}

func TestCLI_FetchTable(t *testing.T) {
	_, port := startNode(t)

	out, err := runGavel(t, "--output", "table", "fetch", "ws://127.0.0.1:"+port)
	require.NoError(t, err)
	assert.Contains(t, out, "block.header.number")
}

func TestCLI_FetchInvalidNumber(t *testing.T) {
	node, port := startNode(t)

	_, err := runGavel(t, "fetch", "ws://127.0.0.1:"+port, "0xzz")
	assert.ErrorIs(t, err, rpc.ErrNumericFormat)
	assert.Empty(t, node.Methods(), "nothing is sent for an invalid number")
}

func TestCLI_MMR(t *testing.T) {
	node, port := startNode(t)
	metricsFile := filepath.Join(t.TempDir(), "gavel.prom")

	out, err := runGavel(t, "--metrics-file", metricsFile, "mmr", "ws://node.invalid:"+port, "-r", "127.0.0.1")
	require.NoError(t, err)

	assert.JSONEq(t, `{"blockHash":"`+testHeadHash+`","leaves":"0x04","proof":"0x00"}`, out)
	assert.Equal(t, []string{"chain_getHead", "chain_getBlock", "mmr_generateProof"}, node.Methods())

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `gavel_dial_total{outcome="ok"} 1`)
	assert.Contains(t, string(data), `gavel_workflows_total{outcome="ok",workflow="mmr"} 1`)
}

func TestCLI_ConnectRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	_, err := runGavel(t, "fetch", "ws://"+addr)
	assert.ErrorIs(t, err, rpc.ErrConnect)
}

func TestCLI_BadArguments(t *testing.T) {
	_, err := runGavel(t, "fetch")
	assert.Error(t, err)

	_, err = runGavel(t, "mmr", "ws://127.0.0.1:1", "1,x")
	assert.ErrorIs(t, err, rpc.ErrNumericFormat)

	_, err = runGavel(t, "fetch", "ws://127.0.0.1:1", "--resolve", "::1")
	assert.ErrorIs(t, err, rpc.ErrAddress)

	_, err = runGavel(t, "--output", "yaml", "fetch", "ws://127.0.0.1:1")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestCLI_FetchHeadOverTLSWithOverride(t *testing.T) {
	node := &nodeStub{results: map[string]any{
		"chain_getHead":  testHeadHash,
		"chain_getBlock": json.RawMessage(testBlock),
	}}
	srv := httptest.NewTLSServer(node)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	out, err := runGavel(t, "fetch", "wss://node.example:"+u.Port()+"/ws", "--resolve", "127.0.0.1")
	require.NoError(t, err)

	assert.JSONEq(t, testBlock, out)
	assert.Equal(t, []string{"chain_getHead", "chain_getBlock"}, node.Methods())
	assert.Equal(t, []string{"node.example:" + u.Port(), "node.example:" + u.Port()}, node.Hosts())
}

func TestCLI_TraceFile(t *testing.T) {
	_, port := startNode(t)
	traceFile := filepath.Join(t.TempDir(), "spans", "gavel.json")

	_, err := runGavel(t, "--trace", traceFile, "fetch", "ws://127.0.0.1:"+port, "26")
	require.NoError(t, err)

	data, err := os.ReadFile(traceFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name":"FetchBlock"`)
	assert.Contains(t, string(data), `"fetching block"`)
}

func TestCLI_MMRNumberForms(t *testing.T) {
	for name, args := range map[string][]string{
		"comma separated": {"1,2,3"},
		"space separated": {"1", "2", "3"},
		"mixed":           {"1,2", "3"},
	} {
		t.Run(name, func(t *testing.T) {
			node, port := startNode(t)

			_, err := runGavel(t, append([]string{"mmr", "ws://127.0.0.1:" + port}, args...)...)
			require.NoError(t, err)

			assert.Equal(t, []string{"mmr_generateProof"}, node.Methods())
			assert.Equal(t, []string{`[[1,2,3]]`}, node.Params())
		})
	}
}
