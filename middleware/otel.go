package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

const instrumentationName = "github.com/felixgeelhaar/openrpc-go"

// RPC semantic convention keys.
var (
	keySystem       = attribute.Key("rpc.system")
	keyService      = attribute.Key("rpc.service")
	keyMethod       = attribute.Key("rpc.method")
	keyErrorCode    = attribute.Key("rpc.jsonrpc.error_code")
	keyRequestID    = attribute.Key("rpc.jsonrpc.request_id")
	keyNotification = attribute.Key("rpc.jsonrpc.notification")
	keyCorrelation  = attribute.Key("rpc.request.correlation_id")
)

// OTelOption configures OTel.
type OTelOption func(*telemetry)

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(t *telemetry) { t.tp = tp }
}

// WithMeterProvider replaces the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(t *telemetry) { t.mp = mp }
}

// WithOTelServiceName sets the rpc.service attribute.
func WithOTelServiceName(name string) OTelOption {
	return func(t *telemetry) { t.service = name }
}

// WithOTelSkipMethods leaves the named methods uninstrumented.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(t *telemetry) {
		for _, m := range methods {
			t.skip[m] = struct{}{}
		}
	}
}

type telemetry struct {
	tp      trace.TracerProvider
	mp      metric.MeterProvider
	service string
	skip    map[string]struct{}

	tracer   trace.Tracer
	calls    metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

func (t *telemetry) instruments() {
	t.tracer = t.tp.Tracer(instrumentationName)
	meter := t.mp.Meter(instrumentationName)
	// Instrument errors only occur for invalid names; the noop fallbacks
	// returned alongside them are safe to use.
	t.calls, _ = meter.Int64Counter("rpc.server.calls",
		metric.WithDescription("JSON-RPC calls handled."), metric.WithUnit("{call}"))
	t.failures, _ = meter.Int64Counter("rpc.server.errors",
		metric.WithDescription("JSON-RPC calls that ended in an error."), metric.WithUnit("{error}"))
	t.latency, _ = meter.Float64Histogram("rpc.server.duration",
		metric.WithDescription("Time spent handling JSON-RPC calls."), metric.WithUnit("ms"))
}

// OTel starts a server span per call and records call, error and latency
// metrics. rpc.discover is never instrumented.
func OTel(opts ...OTelOption) Middleware {
	t := &telemetry{
		tp:      otel.GetTracerProvider(),
		mp:      otel.GetMeterProvider(),
		service: "openrpc-server",
		skip:    map[string]struct{}{protocol.MethodDiscover: {}},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.instruments()

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			if _, ok := t.skip[req.Method]; ok {
				return next(ctx, req)
			}
			base := metric.WithAttributes(keySystem.String("jsonrpc"), keyService.String(t.service), keyMethod.String(req.Method))

			ctx, span := t.tracer.Start(ctx, req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(keySystem.String("jsonrpc"), keyService.String(t.service), keyMethod.String(req.Method)),
			)
			defer span.End()
			if req.IsNotification() {
				span.SetAttributes(keyNotification.Bool(true))
			} else {
				span.SetAttributes(keyRequestID.String(string(req.ID)))
			}
			if rid := RequestIDFromContext(ctx); rid != "" {
				span.SetAttributes(keyCorrelation.String(rid))
			}

			t.calls.Add(ctx, 1, base)
			start := time.Now()
			resp, err := next(ctx, req)
			t.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), base)

			t.finish(ctx, span, base, resp, err)
			return resp, err
		}
	}
}

// finish sets the span status from the outcome of a call.
func (t *telemetry) finish(ctx context.Context, span trace.Span, base metric.MeasurementOption, resp protocol.Response, err error) {
	rpcErr := responseError(resp, err)
	if err == nil && rpcErr == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	opts := []metric.AddOption{base}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Error, rpcErr.Message)
	}
	if rpcErr != nil {
		span.SetAttributes(keyErrorCode.Int(rpcErr.Code))
		opts = append(opts, metric.WithAttributes(keyErrorCode.Int(rpcErr.Code)))
	}
	t.failures.Add(ctx, 1, opts...)
}

// responseError extracts the protocol error of a call, from either the
// returned error or an error response.
func responseError(resp protocol.Response, err error) *protocol.Error {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if er, ok := resp.(*protocol.ErrorResponse); ok && err == nil {
		return er.Error
	}
	return nil
}

// SpanFromContext returns the span OTel started for the call, or a no-op
// span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent records a named event on the call's span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
