package config_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/openrpc-go/config"
	"github.com/felixgeelhaar/openrpc-go/discover"
	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/server"
)

const yamlConfig = `
info:
  title: Calculator
  version: 1.2.0
servers:
  - name: prod
    url: https://calc.example.com/rpc
debug: true
uncaught_error_code: -32050
transport:
  kind: http
  addr: ":9090"
  path: /api
  read_timeout: 5s
limits:
  timeout: 2s
  rate: 10
security:
  oauth:
    type: oauth2
    flow: authorizationCode
    auth_url: https://auth.example.com/authorize
    token_url: https://auth.example.com/token
    scopes:
      read: Read access
`

const tomlConfig = `
debug = true
uncaught_error_code = -32050

[info]
title = "Calculator"
version = "1.2.0"

[[servers]]
name = "prod"
url = "https://calc.example.com/rpc"

[transport]
kind = "http"
addr = ":9090"
path = "/api"
read_timeout = "5s"

[limits]
timeout = "2s"
rate = 10

[security.oauth]
type = "oauth2"
flow = "authorizationCode"
auth_url = "https://auth.example.com/authorize"
token_url = "https://auth.example.com/token"

[security.oauth.scopes]
read = "Read access"
`

const json5Config = `{
  // comments and trailing commas are fine
  info: {title: "Calculator", version: "1.2.0"},
  servers: [{name: "prod", url: "https://calc.example.com/rpc"}],
  debug: true,
  uncaught_error_code: -32050,
  transport: {kind: "http", addr: ":9090", path: "/api", read_timeout: "5s"},
  limits: {timeout: "2s", rate: 10},
  security: {
    oauth: {
      type: "oauth2",
      flow: "authorizationCode",
      auth_url: "https://auth.example.com/authorize",
      token_url: "https://auth.example.com/token",
      scopes: {read: "Read access"},
    },
  },
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "server.yaml", content: yamlConfig},
		{name: "yml", file: "server.yml", content: yamlConfig},
		{name: "toml", file: "server.toml", content: tomlConfig},
		{name: "json5", file: "server.json5", content: json5Config},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, "Calculator", cfg.Info().Title)
			assert.Equal(t, "1.2.0", cfg.Info().Version)
			require.Len(t, cfg.Servers, 1)
			assert.Equal(t, "https://calc.example.com/rpc", cfg.Servers[0].URL)
			assert.True(t, cfg.Debug)
			assert.Equal(t, -32050, cfg.UncaughtErrorCode)
			assert.Equal(t, config.TransportHTTP, cfg.Transport.Kind)
			assert.Equal(t, ":9090", cfg.Transport.Addr)
			assert.Equal(t, "/api", cfg.Transport.Path)
			assert.Equal(t, 5*time.Second, cfg.Transport.ReadTimeout.Std())
			assert.Equal(t, 2*time.Second, cfg.Limits.Timeout.Std())
			assert.Equal(t, 10, cfg.Limits.Rate)
			assert.Equal(t, "global", cfg.Limits.RateBy, "defaults survive the file")
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "Read access", cfg.Security["oauth"].Scopes["read"])
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "server.ini", "title=x"))
		assert.ErrorIs(t, err, config.ErrUnsupportedFormat)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "server.yaml", "info: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "server.yaml", "limits:\n  timeout: soon\n"))
		assert.ErrorContains(t, err, "invalid duration")
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "server.yaml", "transport:\n  kind: carrier-pigeon\n"))
		assert.ErrorContains(t, err, "unknown transport kind")
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, config.TransportStdio, cfg.Transport.Kind)
	assert.Equal(t, "RPC Server", cfg.Info().Title)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{name: "websocket", mutate: func(c *config.Config) { c.Transport.Kind = config.TransportWebSocket }},
		{name: "log format", mutate: func(c *config.Config) { c.Log.Format = "xml" }, wantErr: "log format"},
		{name: "rate by", mutate: func(c *config.Config) { c.Limits.RateBy = "moon" }, wantErr: "rate_by"},
		{name: "negative rate", mutate: func(c *config.Config) { c.Limits.Rate = -1 }, wantErr: "negative"},
		{name: "negative batch", mutate: func(c *config.Config) { c.BatchConcurrency = -2 }, wantErr: "batch_concurrency"},
		{
			name: "unknown scheme type",
			mutate: func(c *config.Config) {
				c.Security = map[string]config.SchemeConfig{"x": {Type: "kerberos"}}
			},
			wantErr: "unknown scheme type",
		},
		{
			name: "oauth2 without token url",
			mutate: func(c *config.Config) {
				c.Security = map[string]config.SchemeConfig{"x": {Type: "oauth2"}}
			},
			wantErr: "token_url",
		},
		{
			name: "unknown oauth2 flow",
			mutate: func(c *config.Config) {
				c.Security = map[string]config.SchemeConfig{"x": {Type: "oauth2", Flow: "implicit", TokenURL: "https://t"}}
			},
			wantErr: "unknown oauth2 flow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDuration_Decode(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: `"1m30s"`, want: 90 * time.Second},
		{in: `"250ms"`, want: 250 * time.Millisecond},
		{in: `15`, want: 15 * time.Second},
		{in: `""`, want: 0},
		{in: `"later"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d config.Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OPENRPC_TITLE", "From Env")
	t.Setenv("OPENRPC_DEBUG", "true")
	t.Setenv("OPENRPC_ADDR", ":7000")
	t.Setenv("OPENRPC_TRANSPORT", "websocket")
	t.Setenv("OPENRPC_TIMEOUT", "3s")
	t.Setenv("OPENRPC_CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := config.Load(writeFile(t, "server.yaml", yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, "From Env", cfg.Info().Title)
	assert.Equal(t, "1.2.0", cfg.Info().Version, "unset variables leave the file value")
	assert.True(t, cfg.Debug)
	assert.Equal(t, ":7000", cfg.Transport.Addr)
	assert.Equal(t, config.TransportWebSocket, cfg.Transport.Kind)
	assert.Equal(t, 3*time.Second, cfg.Limits.Timeout.Std())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Transport.CORSOrigins)

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("OPENRPC_BATCH_CONCURRENCY", "many")
		_, err := config.Load("")
		assert.ErrorContains(t, err, "OPENRPC_BATCH_CONCURRENCY")
	})
}

func TestLoadEnv(t *testing.T) {
	// Registers restoration of the original value.
	t.Setenv("OPENRPC_AUTH_SECRET", "")
	require.NoError(t, os.Unsetenv("OPENRPC_AUTH_SECRET"))
	t.Setenv("OPENRPC_VERSION", "9.9.9")

	envFile := writeFile(t, "test.env", "OPENRPC_AUTH_SECRET=from-dotenv\nOPENRPC_VERSION=0.0.1\n")
	require.NoError(t, config.LoadEnv(envFile))

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.Secret)
	assert.Equal(t, "9.9.9", cfg.Info().Version, "existing variables win over the .env file")

	t.Run("missing explicit file", func(t *testing.T) {
		assert.Error(t, config.LoadEnv(filepath.Join(t.TempDir(), "absent.env")))
	})

	t.Run("no default file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		assert.NoError(t, config.LoadEnv())
	})
}

func TestConfig_SecuritySchemes(t *testing.T) {
	cfg := config.Default()
	cfg.Security = map[string]config.SchemeConfig{
		"oauth": {
			Type:     "oauth2",
			AuthURL:  "https://auth.example.com/authorize",
			TokenURL: "https://auth.example.com/token",
			Scopes:   map[string]string{"read": "Read access", "write": ""},
		},
		"machines": {
			Type:     "oauth2",
			Flow:     "clientCredentials",
			AuthURL:  "https://auth.example.com/authorize",
			TokenURL: "https://auth.example.com/token",
		},
		"key": {Type: "apikey", In: "header", Name: "X-API-Key"},
		"jwt": {Type: "bearer", Scopes: map[string]string{"admin": "Administer"}},
	}

	schemes, err := cfg.SecuritySchemes()
	require.NoError(t, err)
	require.Len(t, schemes, 4)

	oauth, ok := schemes["oauth"].(discover.OAuth2)
	require.True(t, ok)
	require.Len(t, oauth.Flows, 1)
	assert.Equal(t, discover.AuthorizationCode, oauth.Flows[0].Type, "authorization code is the default flow")
	assert.Equal(t, "https://auth.example.com/authorize", oauth.Flows[0].AuthorizationURL)
	assert.Equal(t, "https://auth.example.com/token", oauth.Flows[0].TokenURL)
	assert.Equal(t, map[string]string{"read": "Read access", "write": ""}, oauth.Flows[0].Scopes)

	machines := schemes["machines"].(discover.OAuth2)
	assert.Equal(t, discover.ClientCredentials, machines.Flows[0].Type)
	assert.Empty(t, machines.Flows[0].AuthorizationURL, "client credentials has no authorization url")

	assert.Equal(t, discover.APIKeyAuth{In: "header", Name: "X-API-Key"}, schemes["key"])
	assert.Equal(t, discover.BearerAuth{Scopes: map[string]string{"admin": "Administer"}}, schemes["jwt"])

	t.Run("none configured", func(t *testing.T) {
		schemes, err := config.Default().SecuritySchemes()
		assert.NoError(t, err)
		assert.Nil(t, schemes)
	})
}

func TestConfig_Zerolog(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Log.Level = "warn"

	zl, err := cfg.Zerolog(&buf)
	require.NoError(t, err)

	logger := middleware.NewZerologLogger(zl)
	logger.Info("hidden")
	logger.Warn("shown", middleware.F("method", "add"), middleware.F("attempt", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "exactly one JSON line: %s", buf.String())
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "add", entry["method"])
	assert.EqualValues(t, 2, entry["attempt"])

	t.Run("bad level", func(t *testing.T) {
		cfg := config.Default()
		cfg.Log.Level = "loud"
		_, err := cfg.Zerolog(&buf)
		assert.Error(t, err)
	})
}

func TestConfig_HTTPOptions(t *testing.T) {
	cfg := config.Default()
	assert.Empty(t, cfg.HTTPOptions())
	assert.Empty(t, cfg.WebSocketOptions())

	cfg.Transport.Path = "/api"
	cfg.Transport.ReadTimeout = config.Duration(time.Second)
	cfg.Transport.WriteTimeout = config.Duration(time.Second)
	cfg.Transport.ShutdownTimeout = config.Duration(time.Second)
	cfg.Transport.MaxBodySize = 1024
	cfg.Transport.CORSOrigins = []string{"*"}

	assert.Len(t, cfg.HTTPOptions(), 6)
	assert.Len(t, cfg.WebSocketOptions(), 3)
}

var authSecret = "0123456789abcdef0123456789abcdef"

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(authSecret)}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)
	raw, err := jwt.Signed(signer).Claims(jwt.Claims{
		Subject: subject,
		Expiry:  jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).Serialize()
	require.NoError(t, err)
	return raw
}

func TestConfig_ServerOptions(t *testing.T) {
	cfg, err := config.Load(writeFile(t, "server.yaml", yamlConfig))
	require.NoError(t, err)
	cfg.Auth.Secret = authSecret
	cfg.Limits.Rate = 2
	cfg.Limits.Burst = 2

	opts, err := cfg.ServerOptions(middleware.NopLogger{})
	require.NoError(t, err)

	srv := server.New(cfg.Info(), opts...)
	srv.Method("whoami").
		Security("bearer").
		Handler(func(ctx context.Context) (string, error) {
			return middleware.IdentityFromContext(ctx).ID, nil
		})
	srv.Method("fail").Handler(func() error { return assert.AnError })

	call := func(method, token string) map[string]any {
		ctx := context.Background()
		if token != "" {
			ctx = protocol.ContextWithRequestMeta(ctx, protocol.RequestMeta{"Authorization": "Bearer " + token})
		}
		out := srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"`+method+`","id":1}`))
		var resp map[string]any
		require.NoError(t, json.Unmarshal(out, &resp))
		return resp
	}

	t.Run("discovery reflects the file", func(t *testing.T) {
		doc := srv.Discover()
		assert.Equal(t, "Calculator", doc.Info.Title)
		require.Len(t, doc.Servers, 1)
		assert.Equal(t, "prod", doc.Servers[0].Name)
		require.NotNil(t, doc.Components)
		assert.Contains(t, doc.Components.XSecuritySchemes, "oauth")
	})

	t.Run("jwt identity grants the bearer scheme", func(t *testing.T) {
		resp := call("whoami", signedToken(t, "alice"))
		assert.Equal(t, "alice", resp["result"])
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		resp := call("whoami", "")
		errObj := resp["error"].(map[string]any)
		assert.EqualValues(t, protocol.CodeUnauthorized, errObj["code"])
	})

	t.Run("debug and uncaught code", func(t *testing.T) {
		resp := call("fail", signedToken(t, "alice"))
		errObj := resp["error"].(map[string]any)
		assert.EqualValues(t, -32050, errObj["code"])
		assert.Equal(t, assert.AnError.Error(), errObj["data"])
	})

	t.Run("rate limit", func(t *testing.T) {
		var limited bool
		for range 5 {
			resp := call("whoami", signedToken(t, "bob"))
			if errObj, ok := resp["error"].(map[string]any); ok && errObj["code"] == float64(protocol.CodeRateLimited) {
				limited = true
			}
		}
		assert.True(t, limited, "expected a rate limited call")
	})
}
