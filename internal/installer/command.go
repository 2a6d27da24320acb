package installer

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/oshokin/artifact-keeper/internal/logger"
)

// PathPlaceholder is replaced by the artifact path in handler arguments.
const PathPlaceholder = "{path}"

// CommandTrigger launches an external handler program for the artifact.
type CommandTrigger struct {
	// command is the handler and its arguments.
	command []string
	// lookPath resolves the handler executable.
	lookPath func(file string) (string, error)
	// start launches the resolved command.
	start func(cmd *exec.Cmd) error
}

// NewCommandTrigger returns a trigger running command. When command is empty
// the platform opener is used (xdg-open, open, or cmd /C start).
func NewCommandTrigger(command ...string) *CommandTrigger {
	if len(command) == 0 {
		command = PlatformOpener()
	}

	return &CommandTrigger{
		command:  command,
		lookPath: exec.LookPath,
		start:    startDetached,
	}
}

// PlatformOpener returns the command that opens a file with its default handler.
func PlatformOpener() []string {
	osLC := strings.ToLower(runtime.GOOS)

	switch {
	case strings.Contains(osLC, "windows"):
		return []string{"cmd.exe", "/C", "start", "", PathPlaceholder}
	case strings.Contains(osLC, "darwin"):
		return []string{"open", PathPlaceholder}
	default:
		return []string{"xdg-open", PathPlaceholder}
	}
}

// Install resolves the handler and starts it without waiting for it to finish.
func (c *CommandTrigger) Install(ctx context.Context, req Request) error {
	args := c.arguments(req.Path)
	if len(args) == 0 {
		return fmt.Errorf("empty handler command: %w", ErrInstallUnavailable)
	}

	executable, err := c.lookPath(args[0])
	if err != nil {
		return fmt.Errorf("resolve handler %s: %w: %w", args[0], ErrInstallUnavailable, err)
	}

	// The handler outlives this process' context.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), executable, args[1:]...)

	logger.InfoKV(ctx, "Starting install handler", "handler", executable, "path", req.Path, "content_type", req.ContentType)

	if err = c.start(cmd); err != nil {
		return fmt.Errorf("start handler %s: %w", executable, err)
	}

	return nil
}

// arguments substitutes the path into the command, appending it if no placeholder exists.
func (c *CommandTrigger) arguments(path string) []string {
	args := make([]string, 0, len(c.command)+1)
	substituted := false

	for _, arg := range c.command {
		if strings.Contains(arg, PathPlaceholder) {
			arg = strings.ReplaceAll(arg, PathPlaceholder, path)
			substituted = true
		}

		args = append(args, arg)
	}

	if !substituted && len(args) > 0 {
		args = append(args, path)
	}

	return args
}

// startDetached starts cmd and reaps it in the background.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		_ = cmd.Wait()
	}()

	return nil
}
