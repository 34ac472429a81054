package server

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
)

func TestGrants_Satisfies(t *testing.T) {
	tests := []struct {
		name     string
		grants   Grants
		required map[string][]string
		want     bool
	}{
		{name: "no requirements", grants: nil, required: nil, want: true},
		{name: "no grants", grants: nil, required: map[string][]string{"oauth": {"read"}}, want: false},
		{name: "all scopes granted", grants: Grants{"oauth": {"read", "write"}}, required: map[string][]string{"oauth": {"read", "write"}}, want: true},
		{name: "missing scope", grants: Grants{"oauth": {"read"}}, required: map[string][]string{"oauth": {"read", "write"}}, want: false},
		{name: "scheme without scopes", grants: Grants{"apikey": nil}, required: map[string][]string{"apikey": {}}, want: true},
		{name: "other scheme", grants: Grants{"bearer": {"read"}}, required: map[string][]string{"oauth": {"read"}}, want: false},
		{
			name:     "scopes granted under the wrong scheme",
			grants:   Grants{"apikey": {"a", "b"}},
			required: map[string][]string{"oauth2": {"a", "b"}, "apikey": {"c"}},
			want:     false,
		},
		{
			name:     "any one scheme suffices",
			grants:   Grants{"bearer": {"admin"}},
			required: map[string][]string{"oauth": {"read"}, "bearer": {"admin"}},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.grants.Satisfies(tt.required); got != tt.want {
				t.Errorf("Satisfies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatch_Security(t *testing.T) {
	const (
		call    = `{"jsonrpc":"2.0","method":"secret","id":1}`
		allowed = `{"jsonrpc":"2.0","result":"classified","id":1}`
		denied  = `{"jsonrpc":"2.0","error":{"code":-32099,"message":"Permission error"},"id":1}`
	)
	register := func(srv *Server) {
		srv.Method("secret").
			Security("oauth", "read", "admin").
			Handler(func() string { return "classified" })
	}
	ctx := context.Background()

	t.Run("explicit grants", func(t *testing.T) {
		srv := New(Info{})
		register(srv)

		assertJSON(t, srv.Dispatch(ctx, []byte(call)), denied)
		assertJSON(t, srv.Dispatch(ctx, []byte(call), WithSecurity(Grants{"oauth": {"read"}})), denied)
		assertJSON(t, srv.Dispatch(ctx, []byte(call), WithSecurity(Grants{"oauth": {"admin", "read"}})), allowed)
	})

	t.Run("security function", func(t *testing.T) {
		srv := New(Info{}, WithSecurityFunc(func(ctx context.Context, deps map[string]any) (Grants, error) {
			if deps["user"] == "root" {
				return Grants{"oauth": {"read", "admin"}}, nil
			}
			return nil, nil
		}))
		register(srv)

		assertJSON(t, srv.Dispatch(ctx, []byte(call), WithDependencies(map[string]any{"user": "root"})), allowed)
		assertJSON(t, srv.Dispatch(ctx, []byte(call), WithDependencies(map[string]any{"user": "guest"})), denied)
		assertJSON(t, srv.Dispatch(ctx, []byte(call),
			WithDependencies(map[string]any{"user": "root"}),
			WithSecurity(Grants{})), denied)
	})

	t.Run("security function error", func(t *testing.T) {
		srv := New(Info{}, WithSecurityFunc(func(context.Context, map[string]any) (Grants, error) {
			return nil, errors.New("token store offline")
		}))
		register(srv)

		assertJSON(t, srv.Dispatch(ctx, []byte(call)),
			`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Server error"},"id":1}`)
	})

	t.Run("identity scopes", func(t *testing.T) {
		srv := New(Info{})
		srv.Use(func(next middleware.HandlerFunc) middleware.HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
				ctx = middleware.ContextWithIdentity(ctx, &middleware.Identity{
					ID:     "u1",
					Scopes: map[string][]string{"oauth": {"read", "admin"}},
				})
				return next(ctx, req)
			}
		})
		register(srv)

		assertJSON(t, srv.Dispatch(ctx, []byte(call)), allowed)
	})

	t.Run("unsecured methods ignore grants", func(t *testing.T) {
		srv := New(Info{})
		srv.Method("open").Handler(func() string { return "ok" })

		assertJSON(t, srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"open","id":1}`), WithSecurity(Grants{})),
			`{"jsonrpc":"2.0","result":"ok","id":1}`)
	})
}
