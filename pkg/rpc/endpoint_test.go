package rpc_test

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotkonetworks/gavel/pkg/rpc"
)

// fakeResolver answers lookups from a table and counts them.
type fakeResolver struct {
	answers map[string][]netip.Addr
	err     error
	lookups []string
}

func (r *fakeResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	r.lookups = append(r.lookups, host)
	if r.err != nil {
		return nil, r.err
	}
	return r.answers[host], nil
}

func TestParseEndpoint(t *testing.T) {
	t.Parallel()

	ep, err := rpc.ParseEndpoint("wss://node.example/ws", netip.Addr{})
	require.NoError(t, err)
	assert.Equal(t, "node.example", ep.Hostname())
	assert.Equal(t, "node.example", ep.HostHeader())
	assert.True(t, ep.Secure())
	assert.False(t, ep.HasOverride())
	port, ok := ep.Port()
	assert.True(t, ok)
	assert.Equal(t, uint16(443), port)

	ep, err = rpc.ParseEndpoint("https://node.example:9944/rpc", netip.MustParseAddr("10.0.0.7"))
	require.NoError(t, err)
	assert.Equal(t, "wss://node.example:9944/rpc", ep.UpgradeURL())
	assert.Equal(t, "node.example:9944", ep.HostHeader())
	assert.Equal(t, "node.example", ep.Hostname())
	assert.True(t, ep.HasOverride())

	ep, err = rpc.ParseEndpoint("http://node.example", netip.Addr{})
	require.NoError(t, err)
	assert.Equal(t, "ws://node.example", ep.UpgradeURL())
	assert.False(t, ep.Secure())
	port, _ = ep.Port()
	assert.Equal(t, uint16(80), port)
}

func TestParseEndpoint_Invalid(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name     string
		raw      string
		override netip.Addr
	}{
		{"no host", "wss:///ws", netip.Addr{}},
		{"garbage", "://", netip.Addr{}},
		{"bad port", "ws://node.example:99999", netip.Addr{}},
		{"ipv6 override", "wss://node.example", netip.MustParseAddr("::1")},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rpc.ParseEndpoint(tc.raw, tc.override)
			assert.ErrorIs(t, err, rpc.ErrAddress)
		})
	}
}

func TestResolveAddress_OverrideNeverResolves(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{err: errors.New("must not be called")}

	ep, err := rpc.ParseEndpoint("wss://node.example/ws", netip.MustParseAddr("192.0.2.10"))
	require.NoError(t, err)
	addr, err := rpc.ResolveAddress(context.Background(), ep, res)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("192.0.2.10:443"), addr)

	ep, err = rpc.ParseEndpoint("ws://node.example:9944", netip.MustParseAddr("192.0.2.10"))
	require.NoError(t, err)
	addr, err = rpc.ResolveAddress(context.Background(), ep, res)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("192.0.2.10:9944"), addr)

	assert.Empty(t, res.lookups)
}

func TestResolveAddress_OverrideUnknownSchemeNeedsPort(t *testing.T) {
	t.Parallel()

	ep, err := rpc.ParseEndpoint("foo://node.example/ws", netip.MustParseAddr("192.0.2.10"))
	require.NoError(t, err)

	_, err = rpc.ResolveAddress(context.Background(), ep, &fakeResolver{})
	assert.ErrorIs(t, err, rpc.ErrAddress)
}

func TestResolveAddress_Lookup(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{answers: map[string][]netip.Addr{
		"node.example": {netip.MustParseAddr("2001:db8::1"), netip.MustParseAddr("198.51.100.4")},
	}}

	ep, err := rpc.ParseEndpoint("wss://node.example/ws", netip.Addr{})
	require.NoError(t, err)
	addr, err := rpc.ResolveAddress(context.Background(), ep, res)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("198.51.100.4:443"), addr)
	assert.Equal(t, []string{"node.example"}, res.lookups)

	// Unknown scheme without port falls back to 443.
	ep, err = rpc.ParseEndpoint("foo://node.example", netip.Addr{})
	require.NoError(t, err)
	addr, err = rpc.ResolveAddress(context.Background(), ep, res)
	require.NoError(t, err)
	assert.Equal(t, uint16(443), addr.Port())
}

func TestResolveAddress_IPLiteral(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{}
	ep, err := rpc.ParseEndpoint("ws://127.0.0.1:9944", netip.Addr{})
	require.NoError(t, err)

	addr, err := rpc.ResolveAddress(context.Background(), ep, res)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:9944"), addr)
	assert.Empty(t, res.lookups)
}

func TestResolveAddress_LookupFailures(t *testing.T) {
	t.Parallel()

	ep, err := rpc.ParseEndpoint("wss://node.example/ws", netip.Addr{})
	require.NoError(t, err)

	_, err = rpc.ResolveAddress(context.Background(), ep, &fakeResolver{err: errors.New("no such host")})
	assert.ErrorIs(t, err, rpc.ErrAddress)

	_, err = rpc.ResolveAddress(context.Background(), ep, &fakeResolver{})
	assert.ErrorIs(t, err, rpc.ErrAddress)
}
