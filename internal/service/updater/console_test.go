package updater

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/artifact-keeper/internal/progress"
)

// TestConsoleDecider maps answers onto choices.
func TestConsoleDecider(t *testing.T) {
	t.Parallel()

	cases := map[string]Choice{
		"y\n":   ChoiceProceed,
		"YES\n": ChoiceProceed,
		"n\n":   ChoiceDefer,
		"\n":    ChoiceDefer,
		"":      ChoiceDefer,
	}

	for answer, want := range cases {
		var out bytes.Buffer

		decider := NewConsoleDecider(strings.NewReader(answer), &out)

		got, err := decider.Decide(context.Background(), Prompt{
			Info:           release140,
			CurrentVersion: "1.3.9",
			Attempt:        1,
			LastError:      errTestOffline,
		})
		require.NoError(t, err, answer)
		require.Equal(t, want, got, answer)
		require.Contains(t, out.String(), "Release 1.4.0")
		require.Contains(t, out.String(), "new version: 1.4.0")
		require.Contains(t, out.String(), "network is unreachable")
		require.Contains(t, out.String(), "Download and install now?")
	}
}

// TestConsoleDecider_Canceled stops waiting when the context ends.
func TestConsoleDecider_Canceled(t *testing.T) {
	t.Parallel()

	reader, writer := io.Pipe()
	t.Cleanup(func() { _ = writer.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	choice, err := NewConsoleDecider(reader, io.Discard).Decide(ctx, Prompt{Info: release140, PackageReady: true})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, ChoiceDefer, choice)
}

// TestConsoleDecider_ReadError reports reader failures.
func TestConsoleDecider_ReadError(t *testing.T) {
	t.Parallel()

	reader, writer := io.Pipe()
	_ = writer.CloseWithError(errors.New("tty gone"))

	_, err := NewConsoleDecider(reader, io.Discard).Decide(context.Background(), Prompt{Info: release140})
	require.Error(t, err)
}

// TestConsoleNotifier renders errors and the final progress line.
func TestConsoleNotifier(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	n := NewConsoleNotifier(&out)
	n.Error(context.Background(), MessageDownloadFailed)
	n.Progress(progress.Event{Percent: progress.MaxPercent})
	n.Close()

	require.Contains(t, out.String(), MessageDownloadFailed)
}

// TestStaticDecider returns its fixed choice.
func TestStaticDecider(t *testing.T) {
	t.Parallel()

	choice, err := StaticDecider(ChoiceProceed).Decide(context.Background(), Prompt{})
	require.NoError(t, err)
	require.Equal(t, ChoiceProceed, choice)
}
