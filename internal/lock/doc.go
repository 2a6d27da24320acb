// Package lock guards a storage root against concurrent runs of the tools.
//
// A Marker file holds the PID of its owner. A marker whose PID no longer
// belongs to a running process is stale and is reclaimed automatically.
package lock
