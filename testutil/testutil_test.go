package testutil_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	openrpc "github.com/felixgeelhaar/openrpc-go"
	rpcclient "github.com/felixgeelhaar/openrpc-go/client"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/server"
	"github.com/felixgeelhaar/openrpc-go/testutil"
	"github.com/felixgeelhaar/openrpc-go/transport"
)

type greetParams struct {
	Name string `json:"name"`
}

func newGreeter() *openrpc.Server {
	srv := openrpc.NewServer(openrpc.Info{Title: "test-server", Version: "1.0.0"})
	srv.Method("greet").
		Summary("Greet someone").
		Handler(func(ctx context.Context, in greetParams) (string, error) {
			return "Hello, " + in.Name + "!", nil
		})
	srv.Method("fail").Handler(func() error { return errors.New("intentional error") })
	srv.Method("touch").Handler(func() {})
	return srv
}

func TestTestClient(t *testing.T) {
	client := testutil.NewTestClient(t, newGreeter())
	defer client.Close()

	t.Run("Call", func(t *testing.T) {
		var got string
		if err := client.Call("greet", map[string]string{"name": "World"}, &got); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if got != "Hello, World!" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("MustCall", func(t *testing.T) {
		var got string
		client.MustCall("greet", []string{"Ada"}, &got)
		if got != "Hello, Ada!" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("error", func(t *testing.T) {
		err := client.Call("fail", nil, nil)
		testutil.AssertErrorCode(t, err, protocol.CodeServerError)
	})

	t.Run("unknown method", func(t *testing.T) {
		err := client.Call("missing", nil, nil)
		testutil.AssertErrorCode(t, err, protocol.CodeMethodNotFound)
	})

	t.Run("Notify", func(t *testing.T) {
		client.Notify("touch", nil)
	})

	t.Run("Raw", func(t *testing.T) {
		out := client.Raw(`[{"jsonrpc":"2.0","method":"touch"}]`)
		testutil.AssertJSONEqual(t, out, `[]`)
	})

	t.Run("Batch", func(t *testing.T) {
		var greeting string
		greet := &rpcclient.BatchCall{Method: "greet", Params: []string{"Bob"}, Result: &greeting}
		fail := &rpcclient.BatchCall{Method: "fail"}
		touch := &rpcclient.BatchCall{Method: "touch", Notification: true}
		client.Batch(greet, fail, touch)

		if greeting != "Hello, Bob!" || greet.Error != nil {
			t.Errorf("greet = %q, %v", greeting, greet.Error)
		}
		testutil.AssertErrorCode(t, fail.Error, protocol.CodeServerError)
	})

	t.Run("Discover", func(t *testing.T) {
		doc, err := client.Discover()
		if err != nil {
			t.Fatalf("Discover failed: %v", err)
		}
		if doc.Info.Title != "test-server" || len(doc.Methods) != 3 {
			t.Errorf("doc = %+v", doc)
		}
		client.AssertMethodExists("greet")
	})
}

func TestTestClient_CallOptions(t *testing.T) {
	srv := server.New(server.Info{})
	srv.Method("secret").Security("apikey").Handler(func() string { return "ok" })

	denied := testutil.NewTestClient(t, srv)
	testutil.AssertErrorCode(t, denied.Call("secret", nil, nil), protocol.CodePermissionError)

	allowed := testutil.NewTestClient(t, srv, server.WithSecurity(server.Grants{"apikey": nil}))
	var got string
	allowed.MustCall("secret", nil, &got)
	if got != "ok" {
		t.Errorf("got %q", got)
	}
}

func TestTestClient_WithContext(t *testing.T) {
	type key struct{}
	srv := server.New(server.Info{})
	srv.Method("whoami").Handler(func(ctx context.Context) string {
		v, _ := ctx.Value(key{}).(string)
		return v
	})

	client := testutil.NewTestClient(t, srv).WithContext(context.WithValue(context.Background(), key{}, "ada"))

	var got string
	client.MustCall("whoami", nil, &got)
	if got != "ada" {
		t.Errorf("got %q", got)
	}
}

func TestAssertJSONEqual(t *testing.T) {
	testutil.AssertJSONEqual(t, []byte(`{"b":1,"a":[true,null]}`), `{"a": [true, null], "b": 1}`)
}

func TestRecorder(t *testing.T) {
	srv := newGreeter()
	rec := testutil.NewRecorder(transport.HandlerFunc(func(ctx context.Context, msg []byte) []byte {
		return srv.Dispatch(ctx, msg)
	}))
	client := testutil.NewTestClientWithHandler(t, rec)

	client.MustCall("greet", []string{"x"}, nil)
	client.Notify("touch", nil)

	payloads := rec.Payloads()
	if len(payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(payloads))
	}
	if payloads[1] != `{"jsonrpc":"2.0","method":"touch"}` {
		t.Errorf("payload = %s", payloads[1])
	}
	if replies := rec.Replies(); replies[1] != "" {
		t.Errorf("notification reply = %q, want none", replies[1])
	}
	if ex := rec.Exchanges(); !strings.Contains(ex[0].Reply, `"Hello, x!"`) {
		t.Errorf("first exchange = %+v", ex[0])
	}

	rec.Reset()
	if len(rec.Payloads()) != 0 {
		t.Error("expected empty recording after reset")
	}
}

func TestMockStdio(t *testing.T) {
	mock := testutil.NewMockStdio()
	if err := mock.SendRequest("greet", []string{"pipe"}); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	mock.WriteLine(`{"jsonrpc":"2.0","method":"touch"}`)
	if err := mock.SendRequest("missing", nil); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	srv := newGreeter()
	stdio := transport.NewStdio(transport.WithStdin(mock.Input()), transport.WithStdout(mock.Output()))
	if err := stdio.Serve(context.Background(), transport.HandlerFunc(func(ctx context.Context, msg []byte) []byte {
		return srv.Dispatch(ctx, msg)
	})); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	resp, err := mock.ReadResponse()
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if _, ok := resp.(*protocol.ResultResponse); !ok || string(resp.ResponseID()) != "1" {
		t.Errorf("first response = %#v", resp)
	}

	resp, err = mock.ReadResponse()
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	errResp, ok := resp.(*protocol.ErrorResponse)
	if !ok || errResp.Error.Code != protocol.CodeMethodNotFound || string(resp.ResponseID()) != "2" {
		t.Errorf("second response = %#v", resp)
	}

	if _, err := mock.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}
