// Package common holds helpers shared by several services.
//
// It builds the verifier, fetcher, store and installer stack from the YAML
// configuration and provides a lightweight gRPC health client wrapper with
// timeouts used to query the status server.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
