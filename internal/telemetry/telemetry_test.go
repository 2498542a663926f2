package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_NoEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "mysky")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "http://127.0.0.1:4318/v1/traces", "mysky")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	// Nothing was recorded, so shutdown does not need to reach the collector.
	assert.NoError(t, shutdown(context.Background()))
}
