package config

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/openrpc-go/discover"
	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/server"
	"github.com/felixgeelhaar/openrpc-go/transport"
)

// Zerolog builds a zerolog.Logger writing to w at the configured level.
func (c *Config) Zerolog(w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if c.Log.Level != "" {
		l, err := zerolog.ParseLevel(c.Log.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	if c.Log.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Logger returns the configured logger writing to stderr. Stdout is left
// to the stdio transport.
func (c *Config) Logger() (middleware.Logger, error) {
	zl, err := c.Zerolog(os.Stderr)
	if err != nil {
		return nil, err
	}
	return middleware.NewZerologLogger(zl), nil
}

// Info returns the server info from the info section.
func (c *Config) Info() server.Info {
	return c.API
}

// SecuritySchemes converts the security section into discovery schemes.
func (c *Config) SecuritySchemes() (map[string]discover.SecurityScheme, error) {
	if len(c.Security) == 0 {
		return nil, nil
	}
	schemes := make(map[string]discover.SecurityScheme, len(c.Security))
	for name, sc := range c.Security {
		scheme, err := sc.scheme()
		if err != nil {
			return nil, fmt.Errorf("security scheme %q: %w", name, err)
		}
		schemes[name] = scheme
	}
	return schemes, nil
}

func (sc SchemeConfig) scheme() (discover.SecurityScheme, error) {
	switch sc.Type {
	case "oauth2":
		flowType := discover.OAuth2FlowType(sc.Flow)
		switch flowType {
		case "":
			flowType = discover.AuthorizationCode
		case discover.AuthorizationCode, discover.ClientCredentials, discover.Password:
		default:
			return nil, fmt.Errorf("unknown oauth2 flow %q", sc.Flow)
		}
		if sc.TokenURL == "" {
			return nil, fmt.Errorf("oauth2 scheme needs token_url")
		}
		cfg := &oauth2.Config{
			Endpoint: oauth2.Endpoint{AuthURL: sc.AuthURL, TokenURL: sc.TokenURL},
			Scopes:   scopeNames(sc.Scopes),
		}
		return discover.OAuth2{
			Flows:       []discover.OAuth2Flow{discover.OAuth2FlowFromConfig(flowType, cfg, sc.Scopes)},
			Description: sc.Description,
		}, nil
	case "bearer":
		return discover.BearerAuth{In: sc.In, Name: sc.Name, Description: sc.Description, Scopes: sc.Scopes}, nil
	case "apikey":
		return discover.APIKeyAuth{In: sc.In, Name: sc.Name, Description: sc.Description, Scopes: sc.Scopes}, nil
	default:
		return nil, fmt.Errorf("unknown scheme type %q", sc.Type)
	}
}

func scopeNames(scopes map[string]string) []string {
	names := make([]string, 0, len(scopes))
	for name := range scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Middleware builds the middleware stack: recovery, request ids, logging,
// then the optional timeout, size limit, JWT auth and rate limit.
func (c *Config) Middleware(logger middleware.Logger) []middleware.Middleware {
	var guards []middleware.Middleware
	if c.Auth.Secret != "" {
		opts := []middleware.AuthOption{middleware.WithAuthLogger(logger)}
		if len(c.Auth.SkipMethods) > 0 {
			opts = append(opts, middleware.WithAuthSkipMethods(c.Auth.SkipMethods...))
		}
		guards = append(guards, middleware.Auth(middleware.JWTAuthenticator(middleware.JWTConfig{
			Key:      []byte(c.Auth.Secret),
			Issuer:   c.Auth.Issuer,
			Audience: c.Auth.Audience,
			Scheme:   c.Auth.Scheme,
		}), opts...))
	}
	if c.Limits.Rate > 0 {
		burst := c.Limits.Burst
		if burst == 0 {
			burst = c.Limits.Rate
		}
		rlOpts := []middleware.RateLimitOption{middleware.WithRateLimitLogger(logger)}
		switch c.Limits.RateBy {
		case "method":
			guards = append(guards, middleware.RateLimitByMethod(c.Limits.Rate, burst, rlOpts...))
		case "identity":
			guards = append(guards, middleware.RateLimitByIdentity(c.Limits.Rate, burst, rlOpts...))
		default:
			guards = append(guards, middleware.RateLimit(c.Limits.Rate, burst, rlOpts...))
		}
	}
	return middleware.NewStack(middleware.StackConfig{
		Logger:        logger,
		Timeout:       c.Limits.Timeout.Std(),
		MaxParamsSize: c.Limits.MaxRequestSize,
		Guards:        guards,
	})
}

// ServerOptions translates the configuration into server options, including
// the middleware stack built around logger.
func (c *Config) ServerOptions(logger middleware.Logger) ([]server.Option, error) {
	schemes, err := c.SecuritySchemes()
	if err != nil {
		return nil, err
	}
	opts := []server.Option{
		server.WithDebug(c.Debug),
		server.WithLogger(logger),
		server.WithMiddleware(c.Middleware(logger)...),
	}
	if c.UncaughtErrorCode != 0 {
		opts = append(opts, server.WithUncaughtErrorCode(c.UncaughtErrorCode))
	}
	if len(c.Servers) > 0 {
		opts = append(opts, server.WithServers(c.Servers...))
	}
	if schemes != nil {
		opts = append(opts, server.WithSecuritySchemes(schemes))
	}
	if c.BatchConcurrency > 0 {
		opts = append(opts, server.WithBatchConcurrency(c.BatchConcurrency))
	}
	return opts, nil
}

// HTTPOptions translates the transport section for the HTTP transport.
func (c *Config) HTTPOptions() []transport.HTTPOption {
	t := c.Transport
	var opts []transport.HTTPOption
	if t.Path != "" {
		opts = append(opts, transport.WithPath(t.Path))
	}
	if t.ReadTimeout > 0 {
		opts = append(opts, transport.WithReadTimeout(t.ReadTimeout.Std()))
	}
	if t.WriteTimeout > 0 {
		opts = append(opts, transport.WithWriteTimeout(t.WriteTimeout.Std()))
	}
	if t.ShutdownTimeout > 0 {
		opts = append(opts, transport.WithShutdownTimeout(t.ShutdownTimeout.Std()))
	}
	if t.MaxBodySize > 0 {
		opts = append(opts, transport.WithMaxBodySize(t.MaxBodySize))
	}
	if len(t.CORSOrigins) > 0 {
		opts = append(opts, transport.WithCORS(transport.CORSConfig{AllowOrigins: t.CORSOrigins}))
	}
	return opts
}

// WebSocketOptions translates the transport section for the WebSocket
// transport.
func (c *Config) WebSocketOptions() []transport.WebSocketOption {
	t := c.Transport
	var opts []transport.WebSocketOption
	if t.Path != "" {
		opts = append(opts, transport.WithWebSocketPath(t.Path))
	}
	if t.ReadTimeout > 0 {
		opts = append(opts, transport.WithWebSocketReadTimeout(t.ReadTimeout.Std()))
	}
	if t.WriteTimeout > 0 {
		opts = append(opts, transport.WithWebSocketWriteTimeout(t.WriteTimeout.Std()))
	}
	return opts
}
