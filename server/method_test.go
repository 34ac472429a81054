package server

import (
	"context"
	"strings"
	"testing"

	"github.com/felixgeelhaar/openrpc-go/discover"
	"github.com/felixgeelhaar/openrpc-go/schema"
)

func TestNewMethod_Signatures(t *testing.T) {
	type in struct {
		A int `json:"a"`
	}

	tests := []struct {
		name    string
		handler any
		meta    Metadata
		wantErr string
	}{
		{name: "no params no result", handler: func() {}},
		{name: "context only", handler: func(context.Context) error { return nil }},
		{name: "struct params", handler: func(in) (int, error) { return 0, nil }},
		{name: "context and struct", handler: func(context.Context, in) int { return 0 }},
		{name: "named args", handler: func(a, b int) int { return a + b }, meta: Metadata{ParamNames: []string{"a", "b"}}},
		{name: "not a function", handler: 42, wantErr: "handler must be a function"},
		{name: "nil handler", handler: nil, wantErr: "handler must be a function"},
		{name: "variadic", handler: func(xs ...int) {}, meta: Metadata{ParamNames: []string{"xs"}}, wantErr: "variadic"},
		{name: "unnamed args", handler: func(a, b int) int { return 0 }, wantErr: "0 names were given"},
		{name: "duplicate names", handler: func(a, b int) {}, meta: Metadata{ParamNames: []string{"a", "a"}}, wantErr: "duplicate"},
		{name: "second result not error", handler: func() (int, int) { return 0, 0 }, wantErr: "second return value"},
		{name: "three results", handler: func() (int, int, error) { return 0, 0, nil }, wantErr: "at most 2"},
		{name: "unknown param structure", handler: func() {}, meta: Metadata{ParamStructure: "sideways"}, wantErr: "param structure"},
		{name: "default for unknown param", handler: func(in) {}, meta: Metadata{Defaults: map[string]any{"b": 1}}, wantErr: "unknown parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newMethod("m", tt.handler, tt.meta)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewMethod_StructParams(t *testing.T) {
	type Paging struct {
		Limit  int `json:"limit" rpc:"default=20"`
		Offset int `json:"offset,omitempty"`
	}
	type params struct {
		Paging
		Query    string                  `json:"query" jsonschema:"description=Search terms"`
		Filter   *string                 `json:"filter"`
		Sort     schema.Optional[string] `json:"sort"`
		internal int
		Skipped  string `json:"-"`
		DB       any    `json:"-" rpc:"depends=db"`
	}

	m, err := newMethod("search", func(params) {}, Metadata{})
	if err != nil {
		t.Fatalf("newMethod: %v", err)
	}

	want := map[string]bool{
		"limit":  false,
		"offset": false,
		"query":  true,
		"filter": false,
		"sort":   false,
	}
	client := m.clientParams()
	if len(client) != len(want) {
		t.Fatalf("client params = %d, want %d", len(client), len(want))
	}
	for _, p := range client {
		required, ok := want[p.name]
		if !ok {
			t.Errorf("unexpected param %q", p.name)
			continue
		}
		if p.required != required {
			t.Errorf("%s required = %v, want %v", p.name, p.required, required)
		}
	}
	if len(m.params) != len(want)+1 || m.params[len(m.params)-1].dependency != "db" {
		t.Error("dependency field not recognised")
	}
	_ = params{}.internal
}

func TestNewMethod_RPCTagErrors(t *testing.T) {
	type badDefault struct {
		A int `json:"a" rpc:"default=nope"`
	}
	type badOption struct {
		A int `json:"a" rpc:"bogus=1"`
	}

	if _, err := newMethod("m", func(badDefault) {}, Metadata{}); err == nil {
		t.Error("expected error for invalid default")
	}
	if _, err := newMethod("m", func(badOption) {}, Metadata{}); err == nil {
		t.Error("expected error for unknown option")
	}
}

func TestMethod_Descriptor(t *testing.T) {
	m, err := newMethod("divide", func(a, b float64) (float64, error) { return a / b, nil }, Metadata{
		Doc: `Divide two numbers.

Returns the quotient of a and b.

:param a: Dividend.
:param b: Divisor.
:return: The quotient.`,
		ParamNames: []string{"a", "b"},
		ParamDocs:  map[string]string{"b": "Must not be zero."},
		Tags:       []discover.Tag{{Name: "math"}},
	})
	if err != nil {
		t.Fatalf("newMethod: %v", err)
	}

	d := m.Descriptor()
	if d.Summary != "Divide two numbers." {
		t.Errorf("Summary = %q", d.Summary)
	}
	if d.ResultDescription != "The quotient." {
		t.Errorf("ResultDescription = %q", d.ResultDescription)
	}
	if len(d.Params) != 2 {
		t.Fatalf("Params = %d, want 2", len(d.Params))
	}
	if d.Params[0].Description != "Dividend." {
		t.Errorf("a description = %q", d.Params[0].Description)
	}
	if d.Params[1].Description != "Must not be zero." {
		t.Errorf("b description = %q, explicit doc should win", d.Params[1].Description)
	}
	if !d.Params[0].Required {
		t.Error("a should be required")
	}
}

func TestMethodBuilder_Err(t *testing.T) {
	r := NewRouter()

	b := r.Method("bad").Security("").Handler(func() {})
	if b.Err() == nil {
		t.Fatal("expected error from empty scheme")
	}
	if _, ok := r.Lookup("bad"); ok {
		t.Error("method registered despite builder error")
	}

	b = r.Method("worse").Handler("not a func")
	if b.Err() == nil {
		t.Error("expected error from invalid handler")
	}
}
