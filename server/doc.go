// Package server provides method registration and JSON-RPC 2.0 dispatch.
//
// Most users should use the higher-level openrpc package instead of using
// this package directly.
//
// # Methods
//
// Methods are registered using the fluent builder API. A handler takes an
// optional context followed by either a single params struct or named
// arguments:
//
//	type AddParams struct {
//	    A int `json:"a"`
//	    B int `json:"b" rpc:"default=0"`
//	}
//
//	srv.Method("add").
//	    Summary("Add two numbers").
//	    Handler(func(ctx context.Context, p AddParams) (int, error) {
//	        return p.A + p.B, nil
//	    })
//
//	srv.Method("subtract").
//	    Params("minuend", "subtrahend").
//	    Handler(func(a, b int) int { return a - b })
//
// # Routers
//
// Routers group methods and are included into a server with a prefix:
//
//	geometry := server.NewRouter()
//	geometry.Method("sqrt").Params("x").Handler(math.Sqrt)
//	srv.Include(geometry, server.WithPrefix("geometry."))
//
// # Dispatch
//
// Dispatch takes a raw payload and returns the raw response, or nil when
// no response is due:
//
//	out := srv.Dispatch(ctx, payload,
//	    server.WithSecurity(server.Grants{"bearer": {"read"}}),
//	    server.WithDependencies(map[string]any{"db": db}),
//	)
//
// Errors returned by handlers pass through when they are *protocol.Error;
// other errors are reported with the uncaught error code and only expose
// their text in debug mode.
package server
