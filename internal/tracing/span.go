package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/metadata"

	"github.com/torosent/protoduel/internal/metrics"
)

// StartFetchSpan starts a client span for fetching one entity.
func StartFetchSpan(ctx context.Context, tracer trace.Tracer, protocol, route string, id int) (context.Context, trace.Span) {
	spanName := protocol + " fetch"
	if route != "" {
		spanName = protocol + " " + route
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("rpc.system", protocol),
		attribute.Int("protoduel.entity_id", id),
	)
	if route != "" {
		span.SetAttributes(attribute.String("protoduel.route", route))
	}
	return ctx, span
}

// EndFetchSpan finishes a span with the measured outcome.
func EndFetchSpan(span trace.Span, o metrics.Outcome) {
	span.SetAttributes(
		attribute.Float64("protoduel.latency_ms", o.LatencyMs),
		attribute.Int("protoduel.payload_bytes", o.PayloadBytes),
	)
	if o.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetAttributes(attribute.String("error.type", o.ErrorKind))
		span.SetStatus(codes.Error, o.ErrorDetail)
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// grpcMetadataCarrier adapts grpc metadata.MD to the OTel TextMapCarrier interface.
type grpcMetadataCarrier metadata.MD

func (c grpcMetadataCarrier) Get(key string) string {
	vals := metadata.MD(c).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (c grpcMetadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c grpcMetadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// InjectGRPCMetadata injects W3C trace context into gRPC metadata.
func InjectGRPCMetadata(ctx context.Context, md metadata.MD) {
	otel.GetTextMapPropagator().Inject(ctx, grpcMetadataCarrier(md))
}
