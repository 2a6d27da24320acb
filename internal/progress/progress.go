package progress

import "sync"

// MaxPercent is the percentage of a finished transfer.
const MaxPercent = 100

// Event describes how far a transfer has progressed.
type Event struct {
	// Percent is in the 0-MaxPercent range and never decreases within a transfer.
	Percent int
	// BytesDone is the number of bytes written so far.
	BytesDone int64
	// BytesTotal is the expected size, or -1 if unknown.
	BytesTotal int64
}

// Observer receives progress events. Implementations must return quickly.
type Observer func(Event)

// Tracker converts byte counts into monotonic percentage events.
type Tracker struct {
	// observer receives the percentage events; nil disables reporting.
	observer Observer
	// total is the expected number of bytes, or <= 0 when unknown.
	total int64
	// done is the number of bytes seen so far.
	done int64
	// last is the last reported percentage, -1 before the first report.
	last int
}

// NewTracker returns a Tracker for a transfer of total bytes.
func NewTracker(observer Observer, total int64) *Tracker {
	return &Tracker{
		observer: observer,
		total:    total,
		last:     -1,
	}
}

// Add records n more bytes and reports the percentage if it increased.
// Nothing is reported when the total size is unknown.
func (t *Tracker) Add(n int64) {
	t.done += n

	if t.observer == nil || t.total <= 0 {
		return
	}

	percent := min(int(t.done*MaxPercent/t.total), MaxPercent)

	if percent <= t.last {
		return
	}

	t.last = percent
	t.observer(Event{Percent: percent, BytesDone: t.done, BytesTotal: t.total})
}

// Complete reports 100% if the transfer had a known size and it was not reported yet.
func (t *Tracker) Complete() {
	if t.observer == nil || t.total <= 0 || t.last >= MaxPercent {
		return
	}

	t.last = MaxPercent
	t.observer(Event{Percent: MaxPercent, BytesDone: t.done, BytesTotal: t.total})
}

// Done returns the number of bytes recorded so far.
func (t *Tracker) Done() int64 {
	return t.done
}

// Notifier forwards events to a foreground consumer without blocking the producer.
// Only the most recent undelivered event is kept.
type Notifier struct {
	events chan Event
	mu     sync.Mutex
	closed bool
}

// NewNotifier creates a Notifier with a single-slot buffer.
func NewNotifier() *Notifier {
	return &Notifier{
		events: make(chan Event, 1),
	}
}

// Observer returns the producer-side callback.
func (n *Notifier) Observer() Observer {
	return n.Publish
}

// Publish hands the event to the consumer, replacing an undelivered older one.
func (n *Notifier) Publish(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	select {
	case n.events <- e:
		return
	default:
	}

	// Drop the stale event and retry once; the slot is ours under the lock.
	select {
	case <-n.events:
	default:
	}

	select {
	case n.events <- e:
	default:
	}
}

// Events returns the consumer-side channel. It is closed by Close.
func (n *Notifier) Events() <-chan Event {
	return n.events
}

// Close stops delivery and closes the event channel.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	n.closed = true
	close(n.events)
}

// Monotonic wraps observer so that it only sees increasing percentages,
// even when the producer restarts a transfer from zero.
func Monotonic(observer Observer) Observer {
	if observer == nil {
		return nil
	}

	var (
		mu   sync.Mutex
		last = -1
	)

	return func(e Event) {
		mu.Lock()
		defer mu.Unlock()

		if e.Percent <= last {
			return
		}

		last = e.Percent
		observer(e)
	}
}
