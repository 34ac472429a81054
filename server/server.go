package server

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/openrpc-go/discover"
	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/schema"
)

// Info contains server metadata published in the discovery document.
type Info = discover.Info

const (
	defaultTitle   = "RPC Server"
	defaultVersion = "0.1.0"
)

// Option configures a Server.
type Option func(*Server)

// WithDebug includes the text of uncaught handler errors as error data.
func WithDebug(debug bool) Option {
	return func(s *Server) {
		s.debug.Store(debug)
	}
}

// WithUncaughtErrorCode sets the code used for errors that are not
// *protocol.Error. The default is protocol.CodeServerError.
func WithUncaughtErrorCode(code int) Option {
	return func(s *Server) {
		s.uncaughtCode.Store(int64(code))
	}
}

// WithLogger sets the logger for dispatch events.
func WithLogger(l middleware.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServers lists the servers published by rpc.discover.
func WithServers(servers ...discover.Server) Option {
	return func(s *Server) {
		s.servers = append(s.servers, servers...)
	}
}

// WithSecuritySchemes publishes security schemes by name.
func WithSecuritySchemes(schemes map[string]discover.SecurityScheme) Option {
	return func(s *Server) {
		if s.schemes == nil {
			s.schemes = make(map[string]discover.SecurityScheme, len(schemes))
		}
		for name, scheme := range schemes {
			s.schemes[name] = scheme
		}
	}
}

// WithSecurityFunc sets the function that resolves caller grants when a
// call does not carry explicit grants.
func WithSecurityFunc(fn SecurityFunc) Option {
	return func(s *Server) {
		s.securityFunc = fn
	}
}

// WithExampleGenerator replaces the generator used for examples of
// methods without explicit examples. A nil generator disables them.
func WithExampleGenerator(g discover.ExampleGenerator) Option {
	return func(s *Server) {
		s.examples = g
	}
}

// WithBatchConcurrency bounds the number of batch entries processed at
// once by DispatchConcurrent. Zero means no bound.
func WithBatchConcurrency(n int) Option {
	return func(s *Server) {
		s.batchLimit = n
	}
}

// WithMiddleware adds middleware executed around every method call.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, mw...)
	}
}

// Server is a method registry that dispatches JSON-RPC payloads and
// describes itself through rpc.discover.
type Server struct {
	*Registry

	mu         sync.RWMutex
	info       Info
	middleware []middleware.Middleware

	debug        atomic.Bool
	uncaughtCode atomic.Int64

	logger       middleware.Logger
	servers      []discover.Server
	schemes      map[string]discover.SecurityScheme
	securityFunc SecurityFunc
	examples     discover.ExampleGenerator
	batchLimit   int
}

// New creates a server with the given info and options. Empty title and
// version default to "RPC Server" and "0.1.0".
func New(info Info, opts ...Option) *Server {
	if info.Title == "" {
		info.Title = defaultTitle
	}
	if info.Version == "" {
		info.Version = defaultVersion
	}
	s := &Server{
		Registry: NewRouter(),
		info:     info,
		logger:   middleware.NopLogger{},
		examples: discover.DefaultExamples,
	}
	s.uncaughtCode.Store(protocol.CodeServerError)

	for _, opt := range opts {
		opt(s)
	}

	s.registerDiscover()
	return s
}

// Info returns the server info.
func (s *Server) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Use registers middleware to be executed on every method call.
func (s *Server) Use(mw ...middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, mw...)
}

// Debug reports whether uncaught error text is exposed to callers.
func (s *Server) Debug() bool {
	return s.debug.Load()
}

// SetDebug toggles debug mode at runtime.
func (s *Server) SetDebug(debug bool) {
	s.debug.Store(debug)
}

// UncaughtErrorCode returns the code used for uncaught handler errors.
func (s *Server) UncaughtErrorCode() int {
	return int(s.uncaughtCode.Load())
}

// SetUncaughtErrorCode changes the code used for uncaught handler errors.
func (s *Server) SetUncaughtErrorCode(code int) {
	s.uncaughtCode.Store(int64(code))
}

// Logger returns the server logger.
func (s *Server) Logger() middleware.Logger {
	return s.logger
}

// Discover builds the OpenRPC document for the currently registered
// methods.
func (s *Server) Discover() *discover.Document {
	methods := s.Methods()
	descs := make([]discover.MethodDescriptor, 0, len(methods))
	for _, m := range methods {
		descs = append(descs, m.Descriptor())
	}

	opts := []discover.Option{
		discover.WithServers(slices.Clone(s.servers)...),
		discover.WithExampleGenerator(s.examples),
	}
	if len(s.schemes) > 0 {
		opts = append(opts, discover.WithSecuritySchemes(s.schemes))
	}
	return discover.Generate(s.Info(), descs, opts...)
}

func (s *Server) registerDiscover() {
	err := s.Register(protocol.MethodDiscover, func() *discover.Document {
		return s.Discover()
	}, Metadata{
		Summary: "Returns an OpenRPC schema as a description of this service.",
		Result: &discover.ContentDescriptor{
			Name:     "OpenRPC Schema",
			Required: true,
			Schema:   &schema.Schema{Ref: discover.MetaSchemaURL},
		},
	})
	if err != nil {
		panic(err)
	}
}

func (s *Server) chain() []middleware.Middleware {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.middleware)
}
