package updater

import (
	"context"

	"github.com/oshokin/artifact-keeper/internal/domain/release"
	"github.com/oshokin/artifact-keeper/internal/progress"
)

// State is a step of one update cycle.
type State int

const (
	// StateIdle is the state before Run is called.
	StateIdle State = iota
	// StateCheckingMetadata means the metadata endpoint is being queried.
	StateCheckingMetadata
	// StateNoUpdate is terminal: nothing newer is published.
	StateNoUpdate
	// StateUpdateAvailable means a newer release was found.
	StateUpdateAvailable
	// StateAwaitingUserChoice means the Decider is being asked.
	StateAwaitingUserChoice
	// StateDownloading means the update package is being fetched.
	StateDownloading
	// StateInstalling means the install trigger is running.
	StateInstalling
	// StateInstalled is terminal: the install trigger accepted the package.
	StateInstalled
	// StateDeferred is terminal: the user postponed the update.
	StateDeferred
	// StateFailed is terminal: the cycle could not complete.
	StateFailed
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingMetadata:
		return "checking_metadata"
	case StateNoUpdate:
		return "no_update"
	case StateUpdateAvailable:
		return "update_available"
	case StateAwaitingUserChoice:
		return "awaiting_user_choice"
	case StateDownloading:
		return "downloading"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateDeferred:
		return "deferred"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the cycle ends in s.
func (s State) Terminal() bool {
	switch s {
	case StateNoUpdate, StateInstalled, StateDeferred, StateFailed:
		return true
	default:
		return false
	}
}

// Transition is one edge taken by the state machine.
type Transition struct {
	From State
	To   State
}

// Choice is the user's answer to a Prompt.
type Choice int

const (
	// ChoiceDefer postpones the update to a later cycle.
	ChoiceDefer Choice = iota
	// ChoiceProceed installs now, downloading first if needed.
	ChoiceProceed
)

// Prompt is what the user is asked to decide on.
type Prompt struct {
	// Info describes the available release.
	Info release.UpdateInfo
	// CurrentVersion is the running version.
	CurrentVersion string
	// PackageReady means a verified package is already on disk.
	PackageReady bool
	// Attempt is the number of failed downloads so far.
	Attempt int
	// LastError is the failure of the previous download, if any.
	LastError error
}

// Decider supplies the user's decision. Implementations may block until the
// user answers or ctx is canceled.
type Decider interface {
	Decide(ctx context.Context, prompt Prompt) (Choice, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, prompt Prompt) (Choice, error)

// Decide calls f.
func (f DeciderFunc) Decide(ctx context.Context, prompt Prompt) (Choice, error) {
	return f(ctx, prompt)
}

// Notifier shows user-visible messages and download progress.
type Notifier interface {
	Error(ctx context.Context, message string)
	Progress(event progress.Event)
}

// Result is the outcome of one update cycle.
type Result struct {
	// State is the terminal state.
	State State
	// Info is the release the cycle acted on; empty for NoUpdate.
	Info release.UpdateInfo
	// PackagePath is the local update package path, if one was derived.
	PackagePath string
	// Transitions lists every edge taken, in order.
	Transitions []Transition
	// Err is the failure for StateFailed.
	Err error
}

const (
	// MessageDownloadFailed is shown when fetching the update package fails.
	MessageDownloadFailed = "Download failed, check the network connection"
	// MessageNoInstaller is shown when no handler can install the package.
	MessageNoInstaller = "No application found to install the update"
	// MessageInstallFailed prefixes other install failures.
	MessageInstallFailed = "Installation failed"
)
