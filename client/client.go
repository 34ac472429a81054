// Package client provides a JSON-RPC 2.0 client with OpenRPC discovery.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/openrpc-go/discover"
	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Transport moves encoded payloads to a server.
type Transport interface {
	// Send delivers payload. When wait is true it blocks for the reply;
	// otherwise it returns once the payload is written. A nil reply with a
	// nil error means the server had nothing to say.
	Send(ctx context.Context, payload []byte, wait bool) ([]byte, error)
	// Close closes the transport connection.
	Close() error
}

// ErrNoResponse is returned when a call expected a reply and got none.
var ErrNoResponse = errors.New("client: server returned no response")

// Client is a JSON-RPC client bound to one transport.
type Client struct {
	transport Transport
	opts      clientOptions
	requestID atomic.Int64
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
}

// WithTimeout sets the default timeout for requests. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// New creates a new client with the given transport.
func New(transport Transport, opts ...Option) *Client {
	options := clientOptions{
		timeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		transport: transport,
		opts:      options,
	}
}

// Call invokes method and decodes the result into result, which may be nil
// to discard it. Params may be nil, a slice (by position) or a map or struct
// (by name). A JSON-RPC error reply is returned as a *protocol.Error.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	req, err := protocol.NewRequest(c.nextID(), method, params)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("call %s: marshal request: %w", method, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	reply, err := c.transport.Send(ctx, payload, true)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	if reply == nil {
		return fmt.Errorf("call %s: %w", method, ErrNoResponse)
	}

	resp, err := protocol.DecodeResponse(reply)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	return decodeResult(resp, result)
}

// Notify sends a notification. The server never replies.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	req, err := protocol.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("notify %s: marshal request: %w", method, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.transport.Send(ctx, payload, false); err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	return nil
}

// BatchCall is one entry of a batch. After Batch returns, Error holds the
// entry's JSON-RPC error, if any, and Result has been filled in.
type BatchCall struct {
	Method string
	Params any
	Result any
	// Notification sends the entry without an id; it receives no reply.
	Notification bool
	Error        *protocol.Error

	id string
}

// Batch sends calls as one JSON-RPC batch and matches replies by id.
// The returned error covers transport and decoding failures only; per-call
// errors are reported through BatchCall.Error.
func (c *Client) Batch(ctx context.Context, calls ...*BatchCall) error {
	if len(calls) == 0 {
		return errors.New("batch: no calls")
	}

	reqs := make([]*protocol.Request, 0, len(calls))
	pending := make(map[string]*BatchCall, len(calls))
	for _, call := range calls {
		var (
			req *protocol.Request
			err error
		)
		if call.Notification {
			req, err = protocol.NewNotification(call.Method, call.Params)
		} else {
			req, err = protocol.NewRequest(c.nextID(), call.Method, call.Params)
		}
		if err != nil {
			return fmt.Errorf("batch %s: %w", call.Method, err)
		}
		if !call.Notification {
			call.id = string(req.ID)
			pending[call.id] = call
		}
		reqs = append(reqs, req)
	}

	payload, err := json.Marshal(reqs)
	if err != nil {
		return fmt.Errorf("batch: marshal: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	reply, err := c.transport.Send(ctx, payload, len(pending) > 0)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	if reply == nil {
		return fmt.Errorf("batch: %w", ErrNoResponse)
	}

	resps, err := protocol.DecodeBatchResponse(reply)
	if err != nil {
		// A rejected batch comes back as a single error object.
		if single, serr := protocol.DecodeResponse(reply); serr == nil {
			if e, ok := single.(*protocol.ErrorResponse); ok {
				return e.Error
			}
		}
		return fmt.Errorf("batch: %w", err)
	}

	for _, resp := range resps {
		call, ok := pending[string(resp.ResponseID())]
		if !ok {
			continue
		}
		delete(pending, call.id)
		if err := decodeResult(resp, call.Result); err != nil {
			var rpcErr *protocol.Error
			if !errors.As(err, &rpcErr) {
				return fmt.Errorf("batch %s: %w", call.Method, err)
			}
			call.Error = rpcErr
		}
	}
	for _, call := range pending {
		call.Error = protocol.NewInternalError().WithData("no response for request " + call.id)
	}
	return nil
}

// Discover fetches the server's OpenRPC document via rpc.discover.
func (c *Client) Discover(ctx context.Context) (*discover.Document, error) {
	var doc discover.Document
	if err := c.Call(ctx, protocol.MethodDiscover, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) nextID() int64 {
	return c.requestID.Add(1)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.timeout > 0 {
		return context.WithTimeout(ctx, c.opts.timeout)
	}
	return ctx, func() {}
}

func decodeResult(resp protocol.Response, result any) error {
	switch r := resp.(type) {
	case *protocol.ErrorResponse:
		return r.Error
	case *protocol.ResultResponse:
		if result == nil {
			return nil
		}
		raw, ok := r.Result.(json.RawMessage)
		if !ok {
			return fmt.Errorf("unexpected result type %T", r.Result)
		}
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unexpected response type %T", resp)
	}
}
