package artifact

import (
	"errors"
	"fmt"
)

// OutcomeKind tags the variant of an Outcome.
type OutcomeKind int

const (
	// OutcomeSuccess means the artifact was fetched and stored.
	OutcomeSuccess OutcomeKind = iota + 1
	// OutcomeNetworkFailure means a transport-level failure interrupted the fetch.
	OutcomeNetworkFailure
	// OutcomeDigestMismatch means the stored content did not match the expected digest.
	OutcomeDigestMismatch
	// OutcomeAlreadyValid means a valid local copy existed and no fetch was made.
	OutcomeAlreadyValid
	// OutcomeIOFailure means a local filesystem operation failed.
	OutcomeIOFailure
)

var (
	// ErrNetworkFailure marks connection errors, non-success statuses and truncated streams.
	ErrNetworkFailure = errors.New("network failure")
	// ErrDigestMismatch marks content that does not match its expected digest.
	ErrDigestMismatch = errors.New("digest mismatch")
	// ErrIO marks local read and write failures.
	ErrIO = errors.New("io failure")
)

// String returns a short name of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNetworkFailure:
		return "network_failure"
	case OutcomeDigestMismatch:
		return "digest_mismatch"
	case OutcomeAlreadyValid:
		return "already_valid"
	case OutcomeIOFailure:
		return "io_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of one fetch or ensure attempt.
type Outcome struct {
	// Kind is the variant tag.
	Kind OutcomeKind
	// Err describes the failure; nil for Success and AlreadyValid.
	Err error
}

// Success returns a successful outcome.
func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// AlreadyValid returns the outcome of a cached copy passing verification.
func AlreadyValid() Outcome {
	return Outcome{Kind: OutcomeAlreadyValid}
}

// NetworkFailure wraps err as a network failure outcome.
func NetworkFailure(err error) Outcome {
	return Outcome{Kind: OutcomeNetworkFailure, Err: fmt.Errorf("%w: %w", ErrNetworkFailure, err)}
}

// DigestMismatch builds a mismatch outcome describing the expected and actual digests.
func DigestMismatch(expected, actual string) Outcome {
	return Outcome{
		Kind: OutcomeDigestMismatch,
		Err:  fmt.Errorf("%w: expected %s, got %s", ErrDigestMismatch, expected, actual),
	}
}

// IOFailure wraps err as a local filesystem failure outcome.
func IOFailure(err error) Outcome {
	return Outcome{Kind: OutcomeIOFailure, Err: fmt.Errorf("%w: %w", ErrIO, err)}
}

// OK reports whether a usable local copy exists after the attempt.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeAlreadyValid
}

// Message returns the failure text, or the kind name for successful outcomes.
func (o Outcome) Message() string {
	if o.Err == nil {
		return o.Kind.String()
	}

	return o.Err.Error()
}
