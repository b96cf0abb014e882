// Package rpc is a JSON-RPC 2.0 client over a single WebSocket connection.
//
// The package is layered leaf-first:
//
//   - Endpoint and ResolveAddress decide where to connect. The identity of the
//     server (hostname, used for TLS SNI and the Host header) is kept apart from
//     the optional IPv4 routing override, so a node can be reached by pinned IP
//     while still presenting its real name.
//   - WebsocketDialer establishes TCP, then TLS when the scheme asks for it, then
//     the WebSocket upgrade, and runs a read loop that correlates inbound replies
//     with outstanding calls by id. Replies may arrive out of order, inside batch
//     frames, split across frames, or mixed with unrelated traffic.
//   - Client wraps any Dialer with id generation and typed helpers for the
//     Substrate chain, system and mmr methods.
//
// Typical use:
//
//	ep, err := rpc.ParseEndpoint("wss://node.example/ws", netip.Addr{})
//	dialer := rpc.NewWebsocketDialer(rpc.DefaultWebsocketDialerConfig)
//	if err := dialer.Dial(ctx, ep, nil); err != nil {
//		return err
//	}
//	defer dialer.Close()
//
//	client := rpc.NewClient(dialer, rpc.RandomID)
//	head, err := client.GetHead(ctx)
//
// Errors are sentinel values (ErrAddress, ErrConnect, ErrTLS, ErrUpgrade,
// ErrClosed, ErrMalformedFrame, ErrNumericFormat) wrapped with context, plus
// *Error for error objects returned by the node. Use errors.Is and errors.As.
package rpc
