// Package otel turns eventbus events into OpenTelemetry spans.
package otel

import (
	"context"
	"strings"
	"sync"
	"time"

	eventbus "github.com/hanpama/populate/internal/eventbus"
	events "github.com/hanpama/populate/internal/events"
	reqid "github.com/hanpama/populate/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/hanpama/populate"

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Register(tp.Tracer(instrumentation))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span producers on the global bus.
func Register(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type subscriber struct {
	tracer       trace.Tracer
	httpSpans    sync.Map // rid -> trace.Span
	rpcSpans     sync.Map // rid -> trace.Span
	compileSpans sync.Map // rid -> trace.Span
}

// parent picks the innermost open span for rid.
func (s *subscriber) parent(ctx context.Context, rid string, maps ...*sync.Map) context.Context {
	for _, m := range maps {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func end(m *sync.Map, rid string, fn func(trace.Span)) {
	v, ok := m.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	fn(span)
	span.End()
}

func (s *subscriber) register() func() {
	var stops []func()
	on := func(stop func()) { stops = append(stops, stop) }

	on(eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			semconv.HTTPRouteKey.String(e.Route),
			attribute.String("http.target", e.Request.URL.Path),
			attribute.String("request.id", rid),
		)
		s.httpSpans.Store(rid, span)
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		end(&s.httpSpans, rid, func(span trace.Span) {
			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.Int("http.response_size", e.Bytes),
			)
			if e.Status >= 500 {
				span.SetStatus(codes.Error, "")
			}
		})
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.RPCStart) {
		rid, _ := reqid.FromContext(ctx)
		kind, name := trace.SpanKindServer, "rpc.server"
		if e.Client {
			kind, name = trace.SpanKindClient, "rpc.client"
		}
		service, method := splitMethod(e.Method)
		_, span := s.tracer.Start(s.parent(ctx, rid, &s.httpSpans), name, trace.WithSpanKind(kind))
		span.SetAttributes(
			semconv.RPCSystemKey.String("grpc"),
			semconv.RPCServiceKey.String(service),
			semconv.RPCMethodKey.String(method),
		)
		if e.Target != "" {
			span.SetAttributes(attribute.String("net.peer.name", e.Target))
		}
		s.rpcSpans.Store(rid, span)
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.RPCFinish) {
		rid, _ := reqid.FromContext(ctx)
		end(&s.rpcSpans, rid, func(span trace.Span) {
			span.SetAttributes(attribute.String("grpc.code", e.Code.String()))
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
		})
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.CompileStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, rid, &s.rpcSpans, &s.httpSpans), "populate.compile")
		span.SetAttributes(
			attribute.String("populate.schema", e.Schema),
			attribute.Int("populate.paths", e.Populate),
			attribute.Int("populate.sorts", e.Sort),
		)
		s.compileSpans.Store(rid, span)
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.CompileFinish) {
		rid, _ := reqid.FromContext(ctx)
		end(&s.compileSpans, rid, func(span trace.Span) {
			span.SetAttributes(
				attribute.Int("populate.accepted", e.Accepted),
				attribute.StringSlice("populate.dropped", e.Dropped),
				attribute.StringSlice("populate.dropped_sorts", e.DroppedSorts),
			)
		})
	}))

	on(eventbus.Subscribe(func(ctx context.Context, e events.SchemaReload) {
		_, span := s.tracer.Start(ctx, "populate.schema_reload",
			trace.WithTimestamp(time.Now().Add(-e.Duration)))
		span.SetAttributes(attribute.String("populate.schema_path", e.Path))
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End()
	}))

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// splitMethod breaks "/pkg.Service/Method" into service and method.
func splitMethod(full string) (string, string) {
	full = strings.TrimPrefix(full, "/")
	if i := strings.LastIndex(full, "/"); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}
