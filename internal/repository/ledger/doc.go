// Package ledger implements persistence for artifact outcomes.
//
// The FileRepository stores the last outcome of every artifact as protobuf
// JSON on disk so the status server and CLI can report it across restarts.
package ledger
