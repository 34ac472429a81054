// Package transport moves raw JSON-RPC payloads between peers and a Handler.
//
// Transports never decode JSON-RPC themselves. Each inbound payload, a
// single message or a batch, is passed to Handler.HandleMessage and the
// returned bytes are written back. A nil result means nothing is written,
// which is the case for notifications.
//
// # Stdio Transport
//
// One payload per line on stdin, one response per line on stdout:
//
//	t := transport.NewStdio()
//	err := t.Serve(ctx, handler)
//
// # HTTP Transport
//
//	t := transport.NewHTTP(":8080",
//	    transport.WithPath("/rpc"),
//	    transport.WithDefaultCORS(),
//	    transport.WithShutdownTimeout(10*time.Second),
//	)
//	err := t.Serve(ctx, handler)
//
// The HTTP transport exposes:
//   - POST /rpc - JSON-RPC payloads; 204 when no response is due
//   - GET /health - health check, 503 while draining
//
// Request headers are available to handlers through
// protocol.RequestMetaFromContext.
//
// # WebSocket Transport
//
// Every message on the connection is one payload. Handlers may push
// notifications back with NotificationSenderFromContext.
//
//	t := transport.NewWebSocket(":8080")
//	err := t.Serve(ctx, handler)
//
// Most users should use the root package's ServeStdio, ServeHTTP and
// ServeWebSocket helpers.
package transport
