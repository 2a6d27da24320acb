package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/artifact-keeper/internal/logger"
)

const (
	// MarkerFilename is created in the storage root while a tool is working on it.
	MarkerFilename = ".artifact-keeper.lock"

	// markerFileMode restricts the marker to its owner.
	markerFileMode os.FileMode = 0o600
)

// ErrHeld is returned when another live process owns the marker.
var ErrHeld = errors.New("storage root is in use by another process")

// ProcessFinder reports whether a process with the given PID is running.
type ProcessFinder func(pid int) (bool, error)

// Marker is a PID file guarding one storage root.
type Marker struct {
	// path is the marker file location.
	path string
	// alive checks whether a recorded owner still runs.
	alive ProcessFinder
	// pid is the identifier written into the marker.
	pid int
}

// NewMarker returns a marker inside root.
func NewMarker(root string) *Marker {
	return &Marker{
		path:  filepath.Join(root, MarkerFilename),
		alive: processAlive,
		pid:   os.Getpid(),
	}
}

// Path returns the marker file location.
func (m *Marker) Path() string {
	return m.path
}

// Acquire creates the marker, reclaiming it when its owner is gone.
func (m *Marker) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}

	for range 2 {
		err := m.create()
		if err == nil {
			logger.DebugKV(ctx, "Acquired storage marker", "path", m.path)

			return nil
		}

		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create marker: %w", err)
		}

		held, owner := m.IsHeld(ctx)
		if held {
			return fmt.Errorf("%w (pid %d)", ErrHeld, owner)
		}

		logger.InfoKV(ctx, "Removing stale storage marker", "path", m.path, "owner", owner)

		if err = os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale marker: %w", err)
		}
	}

	return fmt.Errorf("%w: marker keeps reappearing", ErrHeld)
}

// Release removes the marker if this process owns it.
func (m *Marker) Release(ctx context.Context) {
	owner, err := m.owner()
	if err != nil || owner != m.pid {
		return
	}

	if err = os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove storage marker", "path", m.path, "error", err)
	}
}

// IsHeld reports whether another live process owns the marker, and its PID.
func (m *Marker) IsHeld(ctx context.Context) (bool, int) {
	owner, err := m.owner()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unreadable storage marker", "path", m.path, "error", err)
		}

		return false, 0
	}

	if owner == m.pid {
		return false, owner
	}

	alive, err := m.alive(owner)
	if err != nil {
		// Unable to list processes: assume the owner is alive.
		logger.WarnKV(ctx, "Unable to check marker owner", "pid", owner, "error", err)

		return true, owner
	}

	return alive, owner
}

// create writes the marker exclusively.
func (m *Marker) create() error {
	file, err := os.OpenFile(m.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerFileMode)
	if err != nil {
		return err
	}

	if _, err = file.WriteString(strconv.Itoa(m.pid)); err != nil {
		_ = file.Close()
		_ = os.Remove(m.path)

		return err
	}

	return file.Close()
}

// owner reads the PID stored in the marker.
func (m *Marker) owner() (int, error) {
	contents, err := os.ReadFile(m.path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		// A garbled marker has no live owner.
		return 0, nil
	}

	return pid, nil
}

// processAlive looks the PID up in the process table.
func processAlive(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	return process != nil, nil
}
