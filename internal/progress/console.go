package progress

import (
	"fmt"
	"io"
	"sync"
)

// Console draws a single updating progress line on a terminal.
// Events are handed over through a Notifier so producers never block on output.
type Console struct {
	out      io.Writer
	label    string
	mu       sync.Mutex
	events   *Notifier
	rendered chan struct{}
}

// NewConsole starts the renderer. Call Close when the transfer is over.
func NewConsole(out io.Writer, label string) *Console {
	c := &Console{
		out:      out,
		label:    label,
		events:   NewNotifier(),
		rendered: make(chan struct{}),
	}

	go c.render()

	return c
}

// Observer returns the producer-side callback.
func (c *Console) Observer() Observer {
	return c.events.Publish
}

// Println writes a message on its own line without tearing the progress line.
func (c *Console) Println(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.out, "\n%s\n", message)
}

// Close stops the renderer and waits for the last event to be drawn.
// Calling it more than once is safe.
func (c *Console) Close() {
	c.events.Close()
	<-c.rendered
}

// render draws events until the notifier is closed.
func (c *Console) render() {
	defer close(c.rendered)

	for event := range c.events.Events() {
		c.mu.Lock()
		_, _ = fmt.Fprintf(c.out, "\r%s: %3d%%", c.label, event.Percent)

		if event.Percent >= MaxPercent {
			_, _ = io.WriteString(c.out, "\n")
		}
		c.mu.Unlock()
	}
}
