package client

import (
	"context"

	"github.com/felixgeelhaar/openrpc-go/transport"
)

// LocalTransport calls a handler in the same process, skipping the network.
type LocalTransport struct {
	handler transport.Handler
}

// NewLocalTransport creates a transport that hands payloads to h.
func NewLocalTransport(h transport.Handler) *LocalTransport {
	return &LocalTransport{handler: h}
}

// Send passes payload to the handler and returns its output.
func (t *LocalTransport) Send(ctx context.Context, payload []byte, wait bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := t.handler.HandleMessage(ctx, payload)
	if !wait {
		return nil, nil
	}
	return out, nil
}

// Close is a no-op.
func (t *LocalTransport) Close() error {
	return nil
}
