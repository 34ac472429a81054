package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// CallOption configures a single dispatch.
type CallOption func(*callState)

type callState struct {
	grants Grants
	deps   map[string]any
}

// WithSecurity sets the caller grants for this dispatch, overriding the
// server SecurityFunc.
func WithSecurity(grants Grants) CallOption {
	return func(c *callState) {
		if grants == nil {
			grants = Grants{}
		}
		c.grants = grants
	}
}

// WithDependencies supplies values for dependency parameters.
func WithDependencies(deps map[string]any) CallOption {
	return func(c *callState) {
		if c.deps == nil {
			c.deps = make(map[string]any, len(deps))
		}
		for k, v := range deps {
			c.deps[k] = v
		}
	}
}

type callStateKey struct{}

func callFromContext(ctx context.Context) *callState {
	if c, ok := ctx.Value(callStateKey{}).(*callState); ok {
		return c
	}
	return &callState{}
}

// DependenciesFromContext returns the dependencies of the current call.
func DependenciesFromContext(ctx context.Context) map[string]any {
	return callFromContext(ctx).deps
}

// Dispatch processes a raw JSON-RPC payload and returns the serialized
// response. It returns nil when nothing must be sent back: a single
// notification, or a malformed entry shaped like one. Batch entries are
// processed in order.
func (s *Server) Dispatch(ctx context.Context, data []byte, opts ...CallOption) []byte {
	return s.dispatch(ctx, data, false, opts)
}

// DispatchConcurrent is Dispatch with batch entries processed
// concurrently. Responses keep the order of their requests.
func (s *Server) DispatchConcurrent(ctx context.Context, data []byte, opts ...CallOption) []byte {
	return s.dispatch(ctx, data, true, opts)
}

func (s *Server) dispatch(ctx context.Context, data []byte, concurrent bool, opts []CallOption) (out []byte) {
	c := &callState{}
	for _, opt := range opts {
		opt(c)
	}
	ctx = context.WithValue(ctx, callStateKey{}, c)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatch panic", middleware.F("panic", r))
			out = s.encode(protocol.NewErrorResponse(nil, protocol.NewInternalError()))
		}
	}()

	payload, perr := protocol.Parse(data)
	if perr != nil {
		return s.encode(protocol.NewErrorResponse(nil, perr))
	}

	if !payload.Batch {
		resp := s.handleMessage(ctx, payload.Messages[0])
		if resp == nil {
			return nil
		}
		return s.encode(resp)
	}

	if len(payload.Messages) == 0 {
		return s.encode(protocol.NewErrorResponse(nil, protocol.NewInvalidRequest()))
	}

	results := make([]protocol.Response, len(payload.Messages))
	if concurrent {
		var g errgroup.Group
		if s.batchLimit > 0 {
			g.SetLimit(s.batchLimit)
		}
		for i, raw := range payload.Messages {
			g.Go(func() error {
				results[i] = s.handleMessage(ctx, raw)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, raw := range payload.Messages {
			results[i] = s.handleMessage(ctx, raw)
		}
	}

	responses := make([]protocol.Response, 0, len(results))
	for _, r := range results {
		if r != nil {
			responses = append(responses, r)
		}
	}
	return s.encode(responses)
}

// Handle processes one decoded request. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, req *protocol.Request, opts ...CallOption) protocol.Response {
	if _, ok := ctx.Value(callStateKey{}).(*callState); !ok || len(opts) > 0 {
		c := &callState{}
		for _, opt := range opts {
			opt(c)
		}
		ctx = context.WithValue(ctx, callStateKey{}, c)
	}
	return s.handleRequest(ctx, req)
}

func (s *Server) handleMessage(ctx context.Context, raw json.RawMessage) (resp protocol.Response) {
	req, invalid := protocol.DecodeRequest(raw)
	if invalid != nil {
		return invalid
	}
	if req == nil {
		return nil
	}
	return s.handleRequest(ctx, req)
}

func (s *Server) handleRequest(ctx context.Context, req *protocol.Request) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("request panic",
				middleware.F("method", req.Method),
				middleware.F("panic", r),
			)
			resp = nil
			if !req.IsNotification() {
				resp = protocol.NewErrorResponse(req.ID, protocol.NewInternalError())
			}
		}
	}()

	handler := middleware.Chain(s.chain()...)(s.invoke)
	result, err := handler(ctx, req)

	if req.IsNotification() {
		if err != nil {
			s.logger.Debug("notification failed",
				middleware.F("method", req.Method),
				middleware.F("error", err.Error()),
			)
		}
		return nil
	}
	if err != nil {
		return protocol.NewErrorResponse(req.ID, s.toError(err))
	}
	if result == nil {
		return protocol.NewResponse(req.ID, nil)
	}
	return result
}

// invoke is the innermost handler of the middleware chain.
func (s *Server) invoke(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
	m, ok := s.Lookup(req.Method)
	if !ok {
		return nil, protocol.NewMethodNotFound(req.Method)
	}
	c := callFromContext(ctx)

	if len(m.meta.Security) > 0 {
		grants, err := s.grants(ctx, c)
		if err != nil {
			return nil, err
		}
		if !grants.Satisfies(m.meta.Security) {
			s.logger.Warn("permission denied", middleware.F("method", req.Method))
			return nil, protocol.NewPermissionError()
		}
	}

	args, err := m.bind(ctx, req, c.deps)
	if err != nil {
		return nil, err
	}

	result, err := m.call(args)
	if err != nil {
		fields := []middleware.Field{
			middleware.F("method", req.Method),
			middleware.F("error", err.Error()),
		}
		if p, ok := err.(*PanicError); ok {
			fields = append(fields, middleware.F("stack", string(p.Stack)))
		}
		s.logger.Error("method failed", fields...)
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result of %s: %w", req.Method, err)
	}
	return protocol.NewResponse(req.ID, json.RawMessage(raw)), nil
}

// toError maps a handler failure onto a JSON-RPC error. Protocol errors
// pass through; anything else is reported with the uncaught error code and
// carries its text only in debug mode.
func (s *Server) toError(err error) *protocol.Error {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	e := protocol.NewServerError(s.UncaughtErrorCode())
	if s.Debug() {
		e = e.WithData(err.Error())
	}
	return e
}

func (s *Server) encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", middleware.F("error", err.Error()))
		data, _ = json.Marshal(protocol.NewErrorResponse(nil, protocol.NewInternalError()))
	}
	return data
}
