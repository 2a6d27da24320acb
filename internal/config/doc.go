// Package config defines the settings shared by the artifact-keeper binaries
// and provides helpers to load, validate and save them in YAML format.
//
// Config holds the storage root, the metadata endpoint, the artifact set with
// expected digests and the retry policy for network fetches.
package config
