package traces

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_DeregisterWithoutRegister(t *testing.T) {
	p := NewProvider("localhost:4317", "nodewatcher")
	require.NoError(t, p.Deregister(context.Background()))
	assert.NotNil(t, p.Tracer("reconciler"))
}

func TestProvider_Register(t *testing.T) {
	p := NewProvider("localhost:4317", "nodewatcher")
	// the exporter connects lazily so registering needs no collector
	require.NoError(t, p.Register(context.Background()))
	_, span := p.Tracer("reconciler").Start(context.Background(), "test")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}
