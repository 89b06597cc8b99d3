package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/hexfog/hexfog/internal/api/middleware"

	attrRequestID = attribute.Key("request.id")
	attrRegionID  = attribute.Key("hexfog.region_id")
)

// Tracing opens a server span per request, joining any W3C trace context in
// the request headers. Spans are renamed to "METHOD /route/{pattern}" once
// chi has matched a route.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	if serviceName == "" {
		serviceName = tracerName
	}
	tracer := otel.Tracer(serviceName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parent := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(parent, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r)...),
			)
			defer span.End()

			if id := GetRequestID(ctx); id != "" {
				span.SetAttributes(attrRequestID.String(id))
			}

			rec := recordResponse(w)
			r = r.WithContext(ctx)
			next.ServeHTTP(rec, r)

			finishSpan(span, r, rec)
		})
	}
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.URLPath(r.URL.Path),
		semconv.URLScheme(scheme(r)),
		semconv.ServerAddress(r.Host),
		semconv.UserAgentOriginal(r.UserAgent()),
		semconv.ClientAddress(r.RemoteAddr),
	}
	if r.URL.RawQuery != "" {
		attrs = append(attrs, semconv.URLQuery(r.URL.RawQuery))
	}
	return attrs
}

// finishSpan records what routing and the handler produced. 5xx responses
// mark the span as failed; 4xx are the client's fault and leave it unset.
func finishSpan(span trace.Span, r *http.Request, rec *statusRecorder) {
	if route := routePattern(r); route != "" {
		span.SetName(r.Method + " " + route)
		span.SetAttributes(semconv.HTTPRoute(route))
	}
	if region := regionParam(r); region != "" {
		span.SetAttributes(attrRegionID.String(region))
	}
	span.SetAttributes(
		semconv.HTTPResponseStatusCode(rec.status),
		semconv.HTTPResponseBodySize(int(rec.written)),
	)
	if rec.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(rec.status))
	}
}

// scheme returns the request scheme, honouring a proxy's X-Forwarded-Proto.
func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}
