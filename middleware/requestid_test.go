package middleware

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

func captureRequestID(got *string) HandlerFunc {
	return func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
		*got = RequestIDFromContext(ctx)
		return okHandler(ctx, req)
	}
}

func TestRequestID(t *testing.T) {
	t.Run("generates uuid", func(t *testing.T) {
		var got string
		_, _ = RequestID()(captureRequestID(&got))(context.Background(), testRequest("m"))
		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("request id %q is not a UUID: %v", got, err)
		}
	})

	t.Run("preserves existing id", func(t *testing.T) {
		var got string
		ctx := ContextWithRequestID(context.Background(), "existing")
		_, _ = RequestID()(captureRequestID(&got))(ctx, testRequest("m"))
		if got != "existing" {
			t.Errorf("request id = %q, want existing", got)
		}
	})

	t.Run("uses header", func(t *testing.T) {
		var got string
		ctx := protocol.ContextWithRequestMeta(context.Background(), protocol.RequestMeta{"x-request-id": "from-header"})
		_, _ = RequestID()(captureRequestID(&got))(ctx, testRequest("m"))
		if got != "from-header" {
			t.Errorf("request id = %q, want from-header", got)
		}
	})

	t.Run("custom generator", func(t *testing.T) {
		var got string
		_, _ = RequestIDWithGenerator(func() string { return "fixed" })(captureRequestID(&got))(context.Background(), testRequest("m"))
		if got != "fixed" {
			t.Errorf("request id = %q, want fixed", got)
		}
	})

	t.Run("empty without middleware", func(t *testing.T) {
		if id := RequestIDFromContext(context.Background()); id != "" {
			t.Errorf("request id = %q", id)
		}
	})
}
