package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func restoreProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInit_ExportsSpans(t *testing.T) {
	restoreProvider(t)
	var buf bytes.Buffer

	shutdown, err := Init(Config{Enabled: true, Writer: &buf, Version: "test"})
	require.NoError(t, err)

	_, span := otel.Tracer("buyflow/test").Start(context.Background(), "reconcile.run")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "reconcile.run"`)
	assert.Contains(t, buf.String(), ServiceName)
}

func TestInit_DisabledInstallsNothing(t *testing.T) {
	restoreProvider(t)
	before := otel.GetTracerProvider()

	shutdown, err := Init(Config{})
	require.NoError(t, err)

	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}
