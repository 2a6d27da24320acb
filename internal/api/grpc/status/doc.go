// Package status implements the gRPC transport of the artifact status server.
//
// It publishes ledger records through the standard grpc.health.v1 service:
// one service name per artifact ("artifact/<id>"), one per category
// directory and the empty name for the storage root as a whole.
package status
