package middleware

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// PanicHandler is called when a panic is recovered.
type PanicHandler func(ctx context.Context, req *protocol.Request, panicVal any) (protocol.Response, error)

// Recover returns middleware that catches panics raised by later
// middleware and converts them to internal errors carrying the panic value.
func Recover() Middleware {
	return RecoverWithHandler(defaultPanicHandler)
}

// RecoverWithHandler returns middleware that catches panics and calls the provided handler.
func RecoverWithHandler(handler PanicHandler) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (resp protocol.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = handler(ctx, req, r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func defaultPanicHandler(_ context.Context, _ *protocol.Request, panicVal any) (protocol.Response, error) {
	return nil, protocol.NewInternalError().WithData(fmt.Sprintf("panic: %v", panicVal))
}
