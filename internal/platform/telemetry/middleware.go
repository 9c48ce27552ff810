package telemetry

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader echoes the request's trace ID so a client report can be
// matched to the span.
const TraceHeader = "X-Trace-ID"

// unmatchedRoute labels requests no route matched, keeping route
// cardinality bounded by the route table.
const unmatchedRoute = "unmatched"

// Middleware returns the tracing and request-metrics handlers, in order.
// Register both with engine.Use(telemetry.Middleware(name)...).
func Middleware(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName),
		requestMetrics(),
	}
}

type httpInstruments struct {
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments() (*httpInstruments, error) {
	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of quote book API requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Requests currently being served"),
	)
	if err != nil {
		return nil, err
	}

	return &httpInstruments{duration: duration, inFlight: inFlight}, nil
}

// requestMetrics records latency by route and status and sets TraceHeader.
// Instruments that fail to build are reported to the otel error handler
// and the request is served unmeasured.
func requestMetrics() gin.HandlerFunc {
	inst, err := newHTTPInstruments()
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			c.Header(TraceHeader, sc.TraceID().String())
		}

		if inst == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		base := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.HTTPRoute(route),
		}

		start := time.Now()
		inst.inFlight.Add(ctx, 1, metric.WithAttributes(base...))

		c.Next()

		inst.inFlight.Add(ctx, -1, metric.WithAttributes(base...))
		inst.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			append(base, semconv.HTTPResponseStatusCode(c.Writer.Status()))...,
		))
	}
}
