package middleware

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

func newTracer(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOTel(t *testing.T) {
	t.Run("creates span per call", func(t *testing.T) {
		exporter, tp := newTracer(t)
		handler := OTel(WithTracerProvider(tp), WithOTelServiceName("calc"))(okHandler)

		if _, err := handler(context.Background(), testRequest("add")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("spans = %d, want 1", len(spans))
		}
		span := spans[0]
		if span.Name != "add" {
			t.Errorf("span name = %q, want add", span.Name)
		}
		if v, _ := spanAttr(span.Attributes, "rpc.system"); v.AsString() != "jsonrpc" {
			t.Errorf("rpc.system = %v", v.AsString())
		}
		if v, _ := spanAttr(span.Attributes, "rpc.service"); v.AsString() != "calc" {
			t.Errorf("rpc.service = %v", v.AsString())
		}
	})

	t.Run("records protocol error code", func(t *testing.T) {
		exporter, tp := newTracer(t)
		handler := OTel(WithTracerProvider(tp))(func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			return nil, protocol.NewInvalidParams()
		})

		_, _ = handler(context.Background(), testRequest("add"))

		span := exporter.GetSpans()[0]
		v, ok := spanAttr(span.Attributes, "rpc.jsonrpc.error_code")
		if !ok || v.AsInt64() != protocol.CodeInvalidParams {
			t.Errorf("error code attribute = %v", v.AsInt64())
		}
		if len(span.Events) == 0 {
			t.Error("expected error event")
		}
	})

	t.Run("records error responses", func(t *testing.T) {
		exporter, tp := newTracer(t)
		handler := OTel(WithTracerProvider(tp))(func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			return protocol.NewErrorResponse(req.ID, protocol.NewPermissionError()), nil
		})

		_, _ = handler(context.Background(), testRequest("secret"))

		v, ok := spanAttr(exporter.GetSpans()[0].Attributes, "rpc.jsonrpc.error_code")
		if !ok || v.AsInt64() != protocol.CodePermissionError {
			t.Errorf("error code attribute = %v", v.AsInt64())
		}
	})

	t.Run("skips discovery and configured methods", func(t *testing.T) {
		exporter, tp := newTracer(t)
		handler := OTel(WithTracerProvider(tp), WithOTelSkipMethods("health"))(okHandler)

		_, _ = handler(context.Background(), testRequest(protocol.MethodDiscover))
		_, _ = handler(context.Background(), testRequest("health"))

		if n := len(exporter.GetSpans()); n != 0 {
			t.Errorf("spans = %d, want 0", n)
		}
	})

	t.Run("records metrics", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer mp.Shutdown(context.Background())

		_, tp := newTracer(t)
		handler := OTel(WithTracerProvider(tp), WithMeterProvider(mp))(func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			if req.Method == "fail" {
				return nil, errors.New("boom")
			}
			return okHandler(ctx, req)
		})
		_, _ = handler(context.Background(), testRequest("ok"))
		_, _ = handler(context.Background(), testRequest("fail"))

		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			t.Fatalf("Collect: %v", err)
		}
		found := map[string]bool{}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				found[m.Name] = true
			}
		}
		for _, name := range []string{"rpc.server.calls", "rpc.server.duration", "rpc.server.errors"} {
			if !found[name] {
				t.Errorf("metric %s not recorded", name)
			}
		}
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, tp := newTracer(t)
	handler := OTel(WithTracerProvider(tp))(func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
		AddSpanEvent(ctx, "cache.miss", attribute.String("key", "k"))
		if !SpanFromContext(ctx).SpanContext().IsValid() {
			t.Error("no span in handler context")
		}
		return okHandler(ctx, req)
	})

	_, _ = handler(context.Background(), testRequest("get"))

	events := exporter.GetSpans()[0].Events
	if len(events) != 1 || events[0].Name != "cache.miss" {
		t.Errorf("events = %+v", events)
	}
}
