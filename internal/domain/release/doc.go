// Package release holds the self-update domain types: the update metadata
// advertised by the server and the dotted semantic versions used to decide
// whether that metadata describes a newer release.
package release
