package status

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/artifact-keeper/internal/domain/artifact"
	"github.com/oshokin/artifact-keeper/internal/repository/ledger"
)

// artifactPrefix prefixes per-artifact service names.
const artifactPrefix = "artifact/"

// ArtifactService returns the health service name of one artifact.
func ArtifactService(id string) string {
	return artifactPrefix + id
}

// CategoryService returns the health service name of a category.
func CategoryService(category artifact.Category) string {
	return category.Directory()
}

// Server publishes artifact outcomes as gRPC health statuses.
type Server struct {
	// health is the standard health service implementation.
	health *health.Server
}

// NewServer returns a server reporting NOT_SERVING for the storage root until
// the first records are published.
func NewServer() *Server {
	s := &Server{
		health: health.NewServer(),
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// Register attaches the health service to grpcServer.
func (s *Server) Register(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, s.health)
}

// Publish updates the statuses from records. A category is SERVING when every
// artifact in it is; the storage root is SERVING when every category is.
// Callers pass only records of currently configured artifacts.
func (s *Server) Publish(records []ledger.Record) {
	var (
		categories = make(map[artifact.Category]bool, len(artifact.Categories()))
		allOK      = len(records) > 0
	)

	for _, record := range records {
		ok := record.OK()

		s.health.SetServingStatus(ArtifactService(record.ID), toProto(ok))

		previous, seen := categories[record.Category]
		categories[record.Category] = ok && (!seen || previous)
		allOK = allOK && ok
	}

	for category, ok := range categories {
		s.health.SetServingStatus(CategoryService(category), toProto(ok))
	}

	s.health.SetServingStatus("", toProto(allOK))
}

// Shutdown reports NOT_SERVING for every service ahead of a graceful stop.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// toProto maps an outcome flag onto a health status.
func toProto(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}

	return healthpb.HealthCheckResponse_NOT_SERVING
}
