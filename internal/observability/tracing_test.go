package observability

// SetupTracing mutates process env vars, so these tests run sequentially.

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracing_DefaultEndpoint(t *testing.T) {
	cfg := Config{
		Endpoint:    "", // Empty should use default
		Environment: "test",
		ServiceName: "test-service",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	err = shutdown(ctx)
	assert.NoError(t, err)
}

func TestSetupTracing_CustomEndpoint(t *testing.T) {
	cfg := Config{
		Endpoint:    "custom-host:4318",
		Environment: "staging",
		ServiceName: "custom-service",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	err = shutdown(ctx)
	assert.NoError(t, err)
}

func TestSetupTracing_CollectorUnavailable_GracefulDegradation(t *testing.T) {
	// Point to a non-existent collector. Exporter construction does not
	// dial, so startup must succeed; spans fail to export silently.
	cfg := Config{
		Endpoint:    "localhost:1", // Nothing listens here
		Environment: "test",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	err = shutdown(ctx)
	assert.NoError(t, err)
}

func TestSetupTracing_EmptyConfig(t *testing.T) {
	cfg := Config{}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	err = shutdown(ctx)
	assert.NoError(t, err)
}

func TestSetupTracing_SetsResourceEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")

	cfg := Config{
		Environment: "prod",
		ServiceName: "env-service",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(ctx) })

	assert.Equal(t, "env-service", os.Getenv("OTEL_SERVICE_NAME"))
	assert.Equal(t, "deployment.environment=prod", os.Getenv("OTEL_RESOURCE_ATTRIBUTES"))
}

func TestDefaultEndpoint_Value(t *testing.T) {
	assert.Equal(t, "localhost:4318", DefaultEndpoint)
}
