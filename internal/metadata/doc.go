// Package metadata fetches the descriptor of the latest self-update.
//
// Any problem with the endpoint (transport error, non-success status,
// malformed JSON, missing fields) is downgraded to the empty UpdateInfo
// sentinel: the caller sees "no update available", never an error.
package metadata
