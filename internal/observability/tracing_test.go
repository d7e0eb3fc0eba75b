package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracingDefaultEndpoint(t *testing.T) {
	cfg := Config{
		Environment: "test",
		ServiceName: "test-service",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestSetupTracingCustomEndpoint(t *testing.T) {
	cfg := Config{
		Endpoint:    "collector.internal:4318",
		Environment: "staging",
		ServiceName: "jeevo",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestSetupTracingUnreachableCollector(t *testing.T) {
	// Spans fail to export silently, startup must still succeed.
	cfg := Config{
		Endpoint:    "localhost:1",
		Environment: "test",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}
