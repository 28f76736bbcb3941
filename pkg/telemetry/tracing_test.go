package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordSpans installs a recording provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
	return recorder
}

func TestInitTracer_Disabled(t *testing.T) {
	previous := otel.GetTracerProvider()

	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, previous, otel.GetTracerProvider())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		contain string
	}{
		{"always", Config{SamplerType: SamplerAlways}, "AlwaysOnSampler"},
		{"never", Config{SamplerType: SamplerNever}, "AlwaysOffSampler"},
		{"ratio", Config{SamplerType: SamplerRatio, SamplerRatio: 0.5}, "TraceIDRatioBased{0.5}"},
		{"unknown falls back to always", Config{SamplerType: "sometimes"}, "AlwaysOnSampler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, sampler(tt.cfg).Description(), tt.contain)
		})
	}
}

func TestWithSpan(t *testing.T) {
	recorder := recordSpans(t)
	ctx := context.Background()

	require.NoError(t, WithSpan(ctx, "ok", func(ctx context.Context) error {
		SetAttributes(ctx, attribute.Int("count", 3))
		return nil
	}))
	failure := errors.New("boom")
	err := WithSpan(ctx, "failing", func(context.Context) error { return failure })
	assert.ErrorIs(t, err, failure)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "ok", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("count", 3))

	assert.Equal(t, "failing", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestTracer_DefaultName(t *testing.T) {
	recorder := recordSpans(t)

	_, span := Tracer("").Start(context.Background(), "named")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, DefaultTracerName, spans[0].InstrumentationScope().Name)
}
