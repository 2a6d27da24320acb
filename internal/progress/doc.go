// Package progress reports download progress from background work to a
// foreground observer.
//
// Producers call an Observer synchronously; Notifier turns that call into a
// one-way, non-blocking hand-off so the producer never waits on the consumer.
package progress
