// Package server runs the artifact status daemon.
//
// The daemon periodically ensures every configured artifact, records the
// outcomes in the ledger and reports them through the gRPC health service.
package server
