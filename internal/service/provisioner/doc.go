// Package provisioner keeps the configured background artifacts valid.
//
// EnsureAll runs one worker per category; artifacts of the same category are
// handled one after another. Failures are logged and recorded in the ledger,
// never raised, so one unreachable artifact does not stop the rest.
package provisioner
