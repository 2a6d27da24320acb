// Package artifact contains the core domain types for external artifacts.
//
// It defines Category (which storage group an artifact belongs to), Descriptor
// (an immutable description of one artifact) and Outcome (the result of a
// single fetch or ensure attempt).
package artifact
