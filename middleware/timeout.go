package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// MessageTimeout is the error message for calls that exceed their deadline.
const MessageTimeout = "Request timed out"

// Timeout returns middleware that enforces a call deadline. Handlers that
// take a context see it cancelled after d; a call that fails with the
// deadline error is reported as a server error.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			resp, err := next(ctx, req)
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, protocol.NewError(protocol.CodeServerError, MessageTimeout)
			}
			return resp, err
		}
	}
}
