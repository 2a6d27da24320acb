// Package store maps artifacts to their on-disk location and keeps a valid
// local copy of each one.
//
// Ensure is the single entry point: a cached copy that passes digest
// verification is returned without any network traffic, anything else is
// deleted and fetched again. Calls for the same artifact are serialized.
package store
