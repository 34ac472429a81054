// Package testutil helps test JSON-RPC servers without a network.
//
// TestClient drives a server through the regular client package and the
// same dispatch path a transport uses:
//
//	func TestAdd(t *testing.T) {
//	    srv := openrpc.NewServer(openrpc.Info{Title: "calc", Version: "1.0.0"})
//	    srv.Method("add").Params("a", "b").Handler(func(a, b int) int { return a + b })
//
//	    tc := testutil.NewTestClient(t, srv)
//	    defer tc.Close()
//
//	    var sum int
//	    tc.MustCall("add", []int{1, 2}, &sum)
//	    tc.AssertMethodExists("add")
//	}
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/felixgeelhaar/openrpc-go/client"
	"github.com/felixgeelhaar/openrpc-go/discover"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/server"
	"github.com/felixgeelhaar/openrpc-go/transport"
)

// TestClient is a client bound to a test. Failures to reach the handler
// and unexpected notification replies are reported on t.
type TestClient struct {
	t       testing.TB
	ctx     context.Context
	handler transport.Handler
	rpc     *client.Client
}

// NewTestClient dispatches to srv, applying opts to every call.
func NewTestClient(t testing.TB, srv *server.Server, opts ...server.CallOption) *TestClient {
	t.Helper()
	return NewTestClientWithHandler(t, transport.HandlerFunc(func(ctx context.Context, msg []byte) []byte {
		return srv.Dispatch(ctx, msg, opts...)
	}))
}

// NewTestClientWithHandler sends every payload to h, which makes it usable
// with recorders and transport adapters.
func NewTestClientWithHandler(t testing.TB, h transport.Handler) *TestClient {
	t.Helper()
	tc := &TestClient{t: t, ctx: context.Background(), handler: h}
	tc.rpc = client.New(tc)
	return tc
}

// WithContext returns a client whose calls carry ctx. Request ids keep
// counting on the shared underlying client.
func (tc *TestClient) WithContext(ctx context.Context) *TestClient {
	c := *tc
	c.ctx = ctx
	return &c
}

// Client exposes the underlying client.Client.
func (tc *TestClient) Client() *client.Client { return tc.rpc }

// Send implements client.Transport. A notification that produces output
// fails the test.
func (tc *TestClient) Send(ctx context.Context, payload []byte, wait bool) ([]byte, error) {
	out := tc.handler.HandleMessage(ctx, payload)
	if !wait && out != nil {
		tc.t.Errorf("notification produced output: %s", out)
	}
	return out, nil
}

// Close implements client.Transport.
func (tc *TestClient) Close() error { return nil }

// Raw hands payload to the handler untouched and returns its output.
func (tc *TestClient) Raw(payload string) []byte {
	tc.t.Helper()
	return tc.handler.HandleMessage(tc.ctx, []byte(payload))
}

// Call invokes method and decodes the result into result, which may be
// nil. A JSON-RPC error comes back as a wrapped *protocol.Error.
func (tc *TestClient) Call(method string, params, result any) error {
	tc.t.Helper()
	return tc.rpc.Call(tc.ctx, method, params, result)
}

// MustCall is Call that stops the test on error.
func (tc *TestClient) MustCall(method string, params, result any) {
	tc.t.Helper()
	if err := tc.Call(method, params, result); err != nil {
		tc.t.Fatalf("%s: %v", method, err)
	}
}

// Notify sends a notification.
func (tc *TestClient) Notify(method string, params any) {
	tc.t.Helper()
	if err := tc.rpc.Notify(tc.ctx, method, params); err != nil {
		tc.t.Fatalf("notify %s: %v", method, err)
	}
}

// Batch sends calls as one batch; see client.Client.Batch.
func (tc *TestClient) Batch(calls ...*client.BatchCall) {
	tc.t.Helper()
	if err := tc.rpc.Batch(tc.ctx, calls...); err != nil {
		tc.t.Fatalf("batch: %v", err)
	}
}

// Discover fetches the OpenRPC document.
func (tc *TestClient) Discover() (*discover.Document, error) {
	tc.t.Helper()
	return tc.rpc.Discover(tc.ctx)
}

// AssertMethodExists fails the test unless rpc.discover lists name.
func (tc *TestClient) AssertMethodExists(name string) {
	tc.t.Helper()
	doc, err := tc.Discover()
	if err != nil {
		tc.t.Fatalf("discover: %v", err)
	}
	for _, m := range doc.Methods {
		if m.Name == name {
			return
		}
	}
	tc.t.Errorf("method %q not in discovery document", name)
}

// AssertErrorCode fails the test unless err wraps a *protocol.Error with
// the given code.
func AssertErrorCode(t testing.TB, err error, code int) {
	t.Helper()
	var rpcErr *protocol.Error
	switch {
	case !errors.As(err, &rpcErr) || rpcErr == nil:
		t.Errorf("error = %v, want JSON-RPC error %d", err, code)
	case rpcErr.Code != code:
		t.Errorf("error code = %d (%s), want %d", rpcErr.Code, rpcErr.Message, code)
	}
}

// AssertJSONEqual compares two JSON documents ignoring key order and
// whitespace.
func AssertJSONEqual(t testing.TB, got []byte, want string) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("got is not JSON: %s", got)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("want is not JSON: %s", want)
	}
	if !reflect.DeepEqual(g, w) {
		t.Errorf("JSON mismatch\n got: %s\nwant: %s", got, want)
	}
}
