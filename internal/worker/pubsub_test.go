package worker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/hexfog/hexfog/internal/worker"
)

func TestAttributes_CarryTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	attrs := worker.Attributes(ctx, worker.JobRegionImport)
	assert.Equal(t, worker.JobRegionImport, attrs["job_type"])
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", attrs["traceparent"])

	got := trace.SpanContextFromContext(worker.ExtractTrace(context.Background(), attrs))
	assert.True(t, got.IsRemote())
	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.Equal(t, sc.SpanID(), got.SpanID())
}

func TestAttributes_WithoutSpan(t *testing.T) {
	attrs := worker.Attributes(context.Background(), worker.JobTrackRecorded)
	assert.Equal(t, map[string]string{"job_type": worker.JobTrackRecorded}, attrs)

	ctx := worker.ExtractTrace(context.Background(), nil)
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())
}
