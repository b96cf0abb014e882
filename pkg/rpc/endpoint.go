package rpc

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
)

// defaultPorts maps the schemes gavel understands to their well-known ports.
var defaultPorts = map[string]uint16{
	"ws":    80,
	"http":  80,
	"wss":   443,
	"https": 443,
}

// fallbackPort is used when an endpoint without override has neither an
// explicit port nor a known scheme.
const fallbackPort = 443

// Endpoint is the identity of a remote node plus an optional routing override.
//
// URL carries scheme, host, port and path. Override, when valid, is the IPv4
// address to connect to instead of resolving the hostname; it never replaces
// the hostname for TLS server name indication or the Host header.
type Endpoint struct {
	URL      *url.URL
	Override netip.Addr
}

// ParseEndpoint parses raw and attaches override. Pass the zero netip.Addr for
// no override.
func ParseEndpoint(raw string, override netip.Addr) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrAddress, err)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("%w: no host in %q", ErrAddress, raw)
	}
	if p := u.Port(); p != "" {
		if _, err := strconv.ParseUint(p, 10, 16); err != nil {
			return Endpoint{}, fmt.Errorf("%w: bad port %q", ErrAddress, p)
		}
	}
	if override.IsValid() {
		override = override.Unmap()
		if !override.Is4() {
			return Endpoint{}, fmt.Errorf("%w: override %s is not an IPv4 address", ErrAddress, override)
		}
	}
	return Endpoint{URL: u, Override: override}, nil
}

// Hostname is the server name presented in TLS and used for resolution.
func (e Endpoint) Hostname() string {
	return e.URL.Hostname()
}

// HostHeader is the value of the HTTP Host header, including an explicit port.
func (e Endpoint) HostHeader() string {
	return e.URL.Host
}

// Port returns the explicit port, else the scheme default. ok is false when
// neither exists.
func (e Endpoint) Port() (port uint16, ok bool) {
	if p := e.URL.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return 0, false
		}
		return uint16(n), true
	}
	port, ok = defaultPorts[e.URL.Scheme]
	return port, ok
}

// Secure reports whether the scheme requires TLS.
func (e Endpoint) Secure() bool {
	return e.URL.Scheme == "wss" || e.URL.Scheme == "https"
}

// HasOverride reports whether a routing override is set.
func (e Endpoint) HasOverride() bool {
	return e.Override.IsValid()
}

// UpgradeURL is the URL of the WebSocket handshake request. The scheme is
// normalized to ws or wss; host and path are kept.
func (e Endpoint) UpgradeURL() string {
	u := *e.URL
	if e.Secure() {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

func (e Endpoint) String() string {
	if e.HasOverride() {
		return fmt.Sprintf("%s (via %s)", e.URL, e.Override)
	}
	return e.URL.String()
}

// HostResolver looks up the addresses of a host. *net.Resolver implements it.
type HostResolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// ResolveAddress returns the socket address to connect to for ep.
//
// With an override the result is override:port and resolver is never used; an
// endpoint with neither explicit port nor known scheme fails with ErrAddress.
// Without an override the hostname is resolved with resolver (net.DefaultResolver
// when nil), preferring IPv4 answers, and the port falls back to 443.
func ResolveAddress(ctx context.Context, ep Endpoint, resolver HostResolver) (netip.AddrPort, error) {
	if ep.URL == nil || ep.Hostname() == "" {
		return netip.AddrPort{}, fmt.Errorf("%w: endpoint has no host", ErrAddress)
	}

	port, ok := ep.Port()
	if ep.HasOverride() {
		if !ok {
			return netip.AddrPort{}, fmt.Errorf("%w: no port for scheme %q", ErrAddress, ep.URL.Scheme)
		}
		return netip.AddrPortFrom(ep.Override, port), nil
	}
	if !ok {
		port = fallbackPort
	}

	host := ep.Hostname()
	if ip, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(ip.Unmap(), port), nil
	}

	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: lookup %s: %w", ErrAddress, host, err)
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, fmt.Errorf("%w: no addresses for %s", ErrAddress, host)
	}

	chosen := addrs[0].Unmap()
	for _, a := range addrs {
		if a.Unmap().Is4() {
			chosen = a.Unmap()
			break
		}
	}
	return netip.AddrPortFrom(chosen, port), nil
}
