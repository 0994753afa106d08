package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestSpans verifies that spans reach the installed exporter with their
// parent relationship, attributes and status.
func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("allotment-test", "dev", exporter))

	ctx, run := StartSpan(context.Background(), "run")
	run.WithAttributes(map[string]string{"run.id": "r1"}).SetInt("participants", 3)

	_, phase := StartSpan(ctx, "FIRST_PASS")
	phase.AddEvent("rescue", map[string]string{"rule": "algo-11"})
	phase.End(errors.New("boom"))
	run.End(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "FIRST_PASS", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	require.Len(t, spans[0].Events, 2, "rescue event plus recorded error")
	assert.Equal(t, "rescue", spans[0].Events[0].Name)

	assert.Equal(t, "run", spans[1].Name)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)
	assert.Len(t, spans[1].Attributes, 2)

	assert.NoError(t, Shutdown(context.Background()))
}

// TestInit_LeavesFileOfLaterCallAlone verifies that a second Init while a
// provider is installed neither creates nor truncates its file, and that
// Shutdown allows a fresh provider.
func TestInit_LeavesFileOfLaterCallAlone(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	require.NoError(t, os.WriteFile(second, []byte("keep"), 0o644))

	require.NoError(t, Init("allotment-test", "dev", first))
	require.NoError(t, Init("allotment-test", "dev", second))

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	_, span := StartSpan(context.Background(), "run")
	span.End(nil)
	require.NoError(t, Shutdown(context.Background()))

	data, err = os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name": "run"`)

	assert.NoError(t, Shutdown(context.Background()), "second shutdown is a no-op")

	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("allotment-test", "dev", exporter))
	_, span = StartSpan(context.Background(), "again")
	span.End(nil)
	assert.Len(t, exporter.GetSpans(), 1)
	require.NoError(t, Shutdown(context.Background()))
}

// TestSpan_NilSafe verifies that a nil span is inert.
func TestSpan_NilSafe(t *testing.T) {
	var s *Span
	assert.NotPanics(t, func() {
		s.WithAttributes(map[string]string{"k": "v"}).SetInt("n", 1)
		s.AddEvent("e", nil)
		s.End(nil)
	})
}
