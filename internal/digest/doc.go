// Package digest computes and compares file content digests.
//
// Digests are streamed in fixed-size chunks so memory use does not depend on
// artifact size, and are always rendered as lowercase hex without separators.
package digest
