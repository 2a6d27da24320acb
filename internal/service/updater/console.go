package updater

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/oshokin/artifact-keeper/internal/progress"
)

// ConsoleDecider asks the user on a terminal.
type ConsoleDecider struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsoleDecider returns a decider reading answers from in and writing prompts to out.
func NewConsoleDecider(in io.Reader, out io.Writer) *ConsoleDecider {
	return &ConsoleDecider{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Decide prints the release notes and waits for a yes/no answer.
// Anything but an explicit yes defers the update.
func (d *ConsoleDecider) Decide(ctx context.Context, prompt Prompt) (Choice, error) {
	d.render(prompt)

	answers := make(chan string, 1)
	failures := make(chan error, 1)

	go func() {
		line, err := d.in.ReadString('\n')
		if err != nil && line == "" {
			failures <- err

			return
		}

		answers <- line
	}()

	select {
	case <-ctx.Done():
		return ChoiceDefer, ctx.Err()
	case err := <-failures:
		if err == io.EOF {
			return ChoiceDefer, nil
		}

		return ChoiceDefer, fmt.Errorf("read answer: %w", err)
	case answer := <-answers:
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return ChoiceProceed, nil
		default:
			return ChoiceDefer, nil
		}
	}
}

// render writes the prompt text.
func (d *ConsoleDecider) render(prompt Prompt) {
	var b strings.Builder

	title := prompt.Info.Title
	if title == "" {
		title = "Update available"
	}

	fmt.Fprintf(&b, "%s\n", title)

	if prompt.Info.Content != "" {
		fmt.Fprintf(&b, "%s\n", prompt.Info.Content)
	}

	fmt.Fprintf(&b, "Current version: %s, new version: %s\n", prompt.CurrentVersion, prompt.Info.VersionName)

	if prompt.LastError != nil {
		fmt.Fprintf(&b, "Previous attempt %d failed: %v\n", prompt.Attempt, prompt.LastError)
	}

	action := "Download and install"
	if prompt.PackageReady {
		action = "Install"
	}

	fmt.Fprintf(&b, "%s now? [y/N]: ", action)

	_, _ = io.WriteString(d.out, b.String())
}

// StaticDecider always returns the same choice. It serves non-interactive runs.
type StaticDecider Choice

// Decide returns the fixed choice.
func (d StaticDecider) Decide(context.Context, Prompt) (Choice, error) {
	return Choice(d), nil
}

// ConsoleNotifier prints errors and a progress line to a terminal.
type ConsoleNotifier struct {
	console *progress.Console
}

// NewConsoleNotifier starts the progress renderer. Call Close when done.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{console: progress.NewConsole(out, "Downloading")}
}

// Error prints message on its own line.
func (n *ConsoleNotifier) Error(_ context.Context, message string) {
	n.console.Println(message)
}

// Progress forwards event to the renderer without blocking.
func (n *ConsoleNotifier) Progress(event progress.Event) {
	n.console.Observer()(event)
}

// Close stops the renderer and waits for it to flush.
func (n *ConsoleNotifier) Close() {
	n.console.Close()
}
