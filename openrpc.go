// Package openrpc provides a framework for building JSON-RPC 2.0 servers
// that describe themselves with OpenRPC.
//
// Handlers are ordinary Go functions. Parameter and result schemas are
// generated from their types, and the server answers rpc.discover with an
// OpenRPC document built from every registration.
//
// Basic usage:
//
//	srv := openrpc.NewServer(openrpc.Info{
//	    Title:   "calculator",
//	    Version: "1.0.0",
//	})
//
//	srv.Method("add").
//	    Params("a", "b").
//	    Summary("Add two integers").
//	    Handler(func(a, b int) int { return a + b })
//
//	openrpc.ServeHTTP(ctx, srv, ":8080")
package openrpc

import (
	"context"
	"time"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/server"
	"github.com/felixgeelhaar/openrpc-go/transport"
)

// HeadersDependency is the dependency name under which transport request
// headers are supplied to handlers.
const HeadersDependency = "headers"

// Info describes the service in the OpenRPC document.
type Info = server.Info

// Server is the JSON-RPC server instance.
type Server = server.Server

// Router groups methods for inclusion into a server.
type Router = server.Registry

// Option configures a Server.
type Option = server.Option

// MethodBuilder registers a method fluently.
type MethodBuilder = server.MethodBuilder

// Metadata describes a registered method.
type Metadata = server.Metadata

// Grants are the security scopes held by a caller.
type Grants = server.Grants

// CallOption configures a single dispatch.
type CallOption = server.CallOption

// Server options.
var (
	WithDebug             = server.WithDebug
	WithUncaughtErrorCode = server.WithUncaughtErrorCode
	WithLogger            = server.WithLogger
	WithServers           = server.WithServers
	WithSecuritySchemes   = server.WithSecuritySchemes
	WithSecurityFunc      = server.WithSecurityFunc
	WithBatchConcurrency  = server.WithBatchConcurrency
	WithMiddleware        = server.WithMiddleware
	WithPrefix            = server.WithPrefix
	WithTags              = server.WithTags
	WithSecurity          = server.WithSecurity
	WithDependencies      = server.WithDependencies
)

// Middleware types
type Middleware = middleware.Middleware
type MiddlewareHandlerFunc = middleware.HandlerFunc
type Logger = middleware.Logger
type LogField = middleware.Field
type RateLimitOption = middleware.RateLimitOption
type Identity = middleware.Identity

// RateLimit re-exports for convenience.
var (
	RateLimit            = middleware.RateLimit
	RateLimitByMethod    = middleware.RateLimitByMethod
	RateLimitByIdentity  = middleware.RateLimitByIdentity
	WithRateLimitKeyFunc = middleware.WithRateLimitKeyFunc
	WithRateLimitLogger  = middleware.WithRateLimitLogger
)

// SizeLimit re-exports for convenience.
type SizeLimitOption = middleware.SizeLimitOption

var (
	SizeLimit           = middleware.SizeLimit
	WithSizeLimitLogger = middleware.WithSizeLimitLogger
)

// Size limit presets.
const (
	KB = middleware.KB
	MB = middleware.MB
)

// HTTPOption configures the HTTP transport.
type HTTPOption = transport.HTTPOption

// WebSocketOption configures the WebSocket transport.
type WebSocketOption = transport.WebSocketOption

// DependencyFunc derives per-call dependencies from the request context.
type DependencyFunc func(ctx context.Context) map[string]any

// ServeOption configures how the server is run.
type ServeOption func(*serveOptions)

type serveOptions struct {
	concurrent bool
	deps       []DependencyFunc
	callOpts   []CallOption
}

// WithConcurrentBatches processes batch entries concurrently.
func WithConcurrentBatches() ServeOption {
	return func(o *serveOptions) {
		o.concurrent = true
	}
}

// WithDependencyFunc adds dependencies computed for every payload.
func WithDependencyFunc(fn DependencyFunc) ServeOption {
	return func(o *serveOptions) {
		o.deps = append(o.deps, fn)
	}
}

// WithCallOptions applies opts to every dispatch.
func WithCallOptions(opts ...CallOption) ServeOption {
	return func(o *serveOptions) {
		o.callOpts = append(o.callOpts, opts...)
	}
}

// NewServer creates a new server with the given info and options.
func NewServer(info Info, opts ...Option) *Server {
	return server.New(info, opts...)
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return server.NewRouter()
}

// Handler adapts srv to a transport.Handler. Request headers recorded by
// the transport are supplied as the "headers" dependency, a
// protocol.RequestMeta.
func Handler(srv *Server, opts ...ServeOption) transport.Handler {
	options := &serveOptions{}
	for _, opt := range opts {
		opt(options)
	}

	dispatch := srv.Dispatch
	if options.concurrent {
		dispatch = srv.DispatchConcurrent
	}

	return transport.HandlerFunc(func(ctx context.Context, msg []byte) []byte {
		headers := protocol.RequestMetaFromContext(ctx)
		if headers == nil {
			headers = protocol.RequestMeta{}
		}
		deps := map[string]any{HeadersDependency: headers}
		for _, fn := range options.deps {
			for k, v := range fn(ctx) {
				deps[k] = v
			}
		}

		callOpts := make([]CallOption, 0, len(options.callOpts)+1)
		callOpts = append(callOpts, WithDependencies(deps))
		callOpts = append(callOpts, options.callOpts...)
		return dispatch(ctx, msg, callOpts...)
	})
}

// ServeStdio runs the server using stdio transport.
// This blocks until the context is canceled, stdin closes or an error occurs.
func ServeStdio(ctx context.Context, srv *Server, opts ...ServeOption) error {
	return transport.NewStdio().Serve(ctx, Handler(srv, opts...))
}

// ServeHTTP runs the server using HTTP transport.
// This blocks until the context is canceled or an error occurs.
func ServeHTTP(ctx context.Context, srv *Server, addr string, opts ...HTTPOption) error {
	return ServeHTTPWithOptions(ctx, srv, addr, opts)
}

// ServeHTTPWithOptions runs the server using HTTP transport with serve options.
func ServeHTTPWithOptions(ctx context.Context, srv *Server, addr string, httpOpts []HTTPOption, serveOpts ...ServeOption) error {
	return transport.NewHTTP(addr, httpOpts...).Serve(ctx, Handler(srv, serveOpts...))
}

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return transport.WithReadTimeout(d)
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return transport.WithWriteTimeout(d)
}

// WithPath sets the HTTP endpoint path.
func WithPath(path string) HTTPOption {
	return transport.WithPath(path)
}

// WithCORS enables CORS on the HTTP transport.
func WithCORS(config transport.CORSConfig) HTTPOption {
	return transport.WithCORS(config)
}

// ServeWebSocket runs the server using WebSocket transport.
// This blocks until the context is canceled or an error occurs.
func ServeWebSocket(ctx context.Context, srv *Server, addr string, opts ...WebSocketOption) error {
	return ServeWebSocketWithOptions(ctx, srv, addr, opts)
}

// ServeWebSocketWithOptions runs the server using WebSocket transport with serve options.
func ServeWebSocketWithOptions(ctx context.Context, srv *Server, addr string, wsOpts []WebSocketOption, serveOpts ...ServeOption) error {
	return transport.NewWebSocket(addr, wsOpts...).Serve(ctx, Handler(srv, serveOpts...))
}

// WithWebSocketReadTimeout sets the read timeout for WebSocket messages.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return transport.WithWebSocketReadTimeout(d)
}

// WithWebSocketWriteTimeout sets the write timeout for WebSocket messages.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return transport.WithWebSocketWriteTimeout(d)
}

// Middleware re-exports

// Chain composes multiple middleware into a single middleware.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// Recover returns middleware that catches panics and converts them to internal errors.
func Recover() Middleware {
	return middleware.Recover()
}

// Timeout returns middleware that enforces a request deadline.
func Timeout(d time.Duration) Middleware {
	return middleware.Timeout(d)
}

// RequestID returns middleware that injects a unique request ID into the context.
func RequestID() Middleware {
	return middleware.RequestID()
}

// RequestIDFromContext returns the request ID from the context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.RequestIDFromContext(ctx)
}

// Logging returns middleware that logs request details.
func Logging(logger Logger) Middleware {
	return middleware.Logging(logger)
}

// DefaultMiddleware returns the recommended production middleware stack.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// DefaultMiddlewareWithTimeout returns the default stack with a timeout middleware.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}

// LogF creates a new log field with the given key and value.
func LogF(key string, value any) LogField {
	return middleware.F(key, value)
}
