package server

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/felixgeelhaar/openrpc-go/discover"
	"github.com/felixgeelhaar/openrpc-go/schema"
)

type discoverItem struct {
	ID   int    `json:"id"`
	Name string `json:"name" jsonschema:"description=Display name"`
}

type discoverQuery struct {
	Term  string `json:"term"`
	Limit int    `json:"limit" rpc:"default=10"`
	DB    any    `json:"-" rpc:"depends=db"`
}

func TestServer_Discover(t *testing.T) {
	srv := New(Info{Title: "Inventory", Version: "2.0.0"},
		WithServers(discover.Server{Name: "prod", URL: "https://api.example.com/rpc"}),
		WithSecuritySchemes(map[string]discover.SecurityScheme{
			"bearer": discover.BearerAuth{Scopes: map[string]string{"read": "Read items"}},
		}),
	)
	srv.Method("items.search").
		Summary("Search items").
		Security("bearer", "read").
		Handler(func(ctx context.Context, q discoverQuery) ([]discoverItem, error) { return nil, nil })
	srv.Method("items.delete").
		Params("id").
		Deprecated().
		Handler(func(id int) error { return nil })

	doc := srv.Discover()

	if doc.OpenRPC != discover.OpenRPCVersion {
		t.Errorf("OpenRPC = %q", doc.OpenRPC)
	}
	if doc.Info.Title != "Inventory" || doc.Info.Version != "2.0.0" {
		t.Errorf("Info = %+v", doc.Info)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].Name != "prod" {
		t.Errorf("Servers = %+v", doc.Servers)
	}
	if len(doc.Methods) != 2 {
		t.Fatalf("Methods = %d, want 2 (rpc.discover is not listed)", len(doc.Methods))
	}

	search := doc.Methods[0]
	if search.Name != "items.search" || search.Summary != "Search items" {
		t.Errorf("search = %+v", search)
	}
	var names []string
	for _, p := range search.Params {
		names = append(names, p.Name)
	}
	if !reflect.DeepEqual(names, []string{"term", "limit"}) {
		t.Errorf("search params = %v, dependency must be hidden", names)
	}
	if !search.Params[0].Required || search.Params[1].Required {
		t.Errorf("required = %v/%v, want true/false", search.Params[0].Required, search.Params[1].Required)
	}
	if !reflect.DeepEqual(search.XSecurity, map[string][]string{"bearer": {"read"}}) {
		t.Errorf("XSecurity = %v", search.XSecurity)
	}
	if search.Result.Schema.Items == nil || search.Result.Schema.Items.Ref != schema.ComponentsPrefix+"discoverItem" {
		t.Errorf("result schema = %+v", search.Result.Schema)
	}
	if len(search.Examples) != 1 {
		t.Errorf("Examples = %d, want a synthesized pairing", len(search.Examples))
	}

	del := doc.Methods[1]
	if !del.Deprecated {
		t.Error("items.delete should be deprecated")
	}
	if del.Result.Name != "result" || !del.Result.Schema.Equal(schema.Null()) {
		t.Errorf("delete result = %+v, want null schema", del.Result)
	}

	if doc.Components == nil || doc.Components.Schemas["discoverItem"] == nil {
		t.Fatal("discoverItem component missing")
	}
	if _, ok := doc.Components.XSecuritySchemes["bearer"]; !ok {
		t.Error("bearer scheme missing")
	}
}

func TestServer_Discover_Defaults(t *testing.T) {
	srv := New(Info{})
	doc := srv.Discover()

	if doc.Info.Title != "RPC Server" || doc.Info.Version != "0.1.0" {
		t.Errorf("Info = %+v", doc.Info)
	}
	if len(doc.Servers) != 1 || doc.Servers[0] != discover.DefaultServer {
		t.Errorf("Servers = %+v", doc.Servers)
	}
	if len(doc.Methods) != 0 {
		t.Errorf("Methods = %d, want 0", len(doc.Methods))
	}
	if doc.Components != nil {
		t.Errorf("Components = %+v, want nil", doc.Components)
	}
}

func TestServer_DiscoverMethod(t *testing.T) {
	srv := New(Info{Title: "calc"})
	srv.Method("add").Params("a", "b").Handler(func(a, b int) int { return a + b })

	out := srv.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","method":"rpc.discover","id":1}`))

	var resp struct {
		Result discover.Document `json:"result"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal %s: %v", out, err)
	}
	if resp.Result.OpenRPC != discover.OpenRPCVersion {
		t.Errorf("openrpc = %q", resp.Result.OpenRPC)
	}
	if len(resp.Result.Methods) != 1 || resp.Result.Methods[0].Name != "add" {
		t.Errorf("methods = %+v", resp.Result.Methods)
	}

	t.Run("repeated calls are identical", func(t *testing.T) {
		again := srv.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","method":"rpc.discover","id":1}`))
		if string(again) != string(out) {
			t.Error("rpc.discover output changed between calls")
		}
	})

	t.Run("self description", func(t *testing.T) {
		m, ok := srv.Lookup("rpc.discover")
		if !ok {
			t.Fatal("rpc.discover not registered")
		}
		d := m.Descriptor()
		if d.ResultOverride == nil || d.ResultOverride.Schema.Ref != discover.MetaSchemaURL {
			t.Errorf("result override = %+v", d.ResultOverride)
		}
	})
}
