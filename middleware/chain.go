package middleware

import (
	"context"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// HandlerFunc handles one decoded request. The returned response is nil
// when err is set.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (protocol.Response, error)

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes multiple middleware into a single middleware.
// Middleware are applied in order, so Chain(m1, m2, m3) results in
// m1 wrapping m2 wrapping m3 wrapping the final handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Skip applies mw to every method except the listed ones.
func Skip(mw Middleware, methods ...string) Middleware {
	skip := make(map[string]bool, len(methods))
	for _, m := range methods {
		skip[m] = true
	}
	return func(next HandlerFunc) HandlerFunc {
		wrapped := mw(next)
		return func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			if skip[req.Method] {
				return next(ctx, req)
			}
			return wrapped(ctx, req)
		}
	}
}
