// Package packager prepares the files a publisher uploads next to a release.
//
// It computes the digest of the update package and writes the metadata
// document read by the updater, and computes digests of background artifacts
// into a YAML manifest whose entries can be pasted into the settings file.
package packager
