package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Handler processes one inbound JSON-RPC payload, a single message or a
// batch, and returns the payload to send back. A nil result means no
// response is due.
type Handler interface {
	HandleMessage(ctx context.Context, msg []byte) []byte
}

// HandlerFunc is an adapter to allow ordinary functions as handlers.
type HandlerFunc func(ctx context.Context, msg []byte) []byte

// HandleMessage calls f(ctx, msg).
func (f HandlerFunc) HandleMessage(ctx context.Context, msg []byte) []byte {
	return f(ctx, msg)
}

// Transport defines the communication layer interface.
type Transport interface {
	// Serve starts the transport, blocking until ctx is canceled or an error occurs.
	Serve(ctx context.Context, handler Handler) error

	// Addr returns the transport's address description.
	Addr() string
}

// NotificationSender can push JSON-RPC notifications to the peer of a
// connection-oriented transport.
type NotificationSender interface {
	SendNotification(method string, params any) error
}

type notificationSenderKey struct{}

// ContextWithNotificationSender returns a context with the notification sender attached.
func ContextWithNotificationSender(ctx context.Context, sender NotificationSender) context.Context {
	return context.WithValue(ctx, notificationSenderKey{}, sender)
}

// NotificationSenderFromContext returns the notification sender from context, or nil if none.
func NotificationSenderFromContext(ctx context.Context) NotificationSender {
	sender, _ := ctx.Value(notificationSenderKey{}).(NotificationSender)
	return sender
}

func encodeNotification(method string, params any) ([]byte, error) {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return data, nil
}
