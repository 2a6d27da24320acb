// Package fetcher streams remote artifacts into local files.
//
// A Fetcher performs exactly one HTTP GET per call, writes into a ".part" file
// next to the destination and renames it into place only after the whole body
// was received, so a partially-written file is never visible at the
// destination path. Retrying decorates any fetcher with a bounded retry loop
// and exponential backoff for transport failures.
package fetcher
