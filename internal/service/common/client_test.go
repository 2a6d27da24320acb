//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestFromProto maps every health status.
func TestFromProto(t *testing.T) {
	t.Parallel()

	require.Equal(t, StatusServing, fromProto(healthpb.HealthCheckResponse_SERVING))
	require.Equal(t, StatusNotServing, fromProto(healthpb.HealthCheckResponse_NOT_SERVING))
	require.Equal(t, StatusUnknown, fromProto(healthpb.HealthCheckResponse_SERVICE_UNKNOWN))
	require.Equal(t, "NOT_SERVING", StatusNotServing.String())
}

// TestClose_Nil verifies Close tolerates an unconnected client.
func TestClose_Nil(t *testing.T) {
	t.Parallel()

	var c *Client
	require.NoError(t, c.Close())
}
