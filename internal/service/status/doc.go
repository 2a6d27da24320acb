// Package status queries a running artifact server and prints the serving
// status of the storage root, every category and every configured artifact.
package status
