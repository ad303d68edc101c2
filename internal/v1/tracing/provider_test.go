package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerReturnsShutdownableProvider(t *testing.T) {
	tp, err := InitTracer(context.Background(), "thiscrow-test")
	require.NoError(t, err)
	require.NotNil(t, tp)

	tracer := tp.Tracer("test")
	_, span := tracer.Start(context.Background(), "unit-test-span")
	span.End()

	assert.NoError(t, tp.Shutdown(context.Background()))
}
