// Package version exposes build metadata for artifact-keeper.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Semantic returns the running version in the form the update coordinator
// compares against the metadata endpoint.
package version
