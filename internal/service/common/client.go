//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/oshokin/artifact-keeper/internal/config"
)

// Client wraps the gRPC health client of the status server with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the status server.
	conn *grpc.ClientConn
	// api is the generated health client interface.
	api healthpb.HealthClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// ServingStatus is the status reported for one service name.
type ServingStatus int

const (
	// StatusUnknown means the server does not know the service name.
	StatusUnknown ServingStatus = iota
	// StatusServing means the last outcome left a usable local copy.
	StatusServing
	// StatusNotServing means the last outcome failed.
	StatusNotServing
)

// String returns the status name printed by the status CLI.
func (s ServingStatus) String() string {
	switch s {
	case StatusServing:
		return "SERVING"
	case StatusNotServing:
		return "NOT_SERVING"
	default:
		return "UNKNOWN"
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the status server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial status server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         healthpb.NewHealthClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Check returns the serving status of service.
// Names the server does not know are reported as StatusUnknown without an error.
func (c *Client) Check(ctx context.Context, service string) (ServingStatus, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Check(callCtx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return StatusUnknown, nil
		}

		return StatusUnknown, fmt.Errorf("check %q: %w", service, err)
	}

	return fromProto(resp.GetStatus()), nil
}

// fromProto maps a health status onto ServingStatus.
func fromProto(s healthpb.HealthCheckResponse_ServingStatus) ServingStatus {
	switch s {
	case healthpb.HealthCheckResponse_SERVING:
		return StatusServing
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return StatusNotServing
	default:
		return StatusUnknown
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
