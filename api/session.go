// File: api/session.go
// Package api defines the contracts between the connection supervisor and
// the per-connection execution units it manages.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Session is one accepted connection executing independently of the
// supervisor. Implementations must be pointer types: the supervisor uses the
// interface value itself as the session's identity.
type Session interface {
	// ID returns a human readable identity used in logs.
	ID() string
	// Start begins the session's own execution and returns immediately.
	Start()
	// Close terminates the session and releases its transport.
	Close() error
	// IsActive reports whether the session is still live.
	IsActive() bool
	// Metadata returns the record shared with the supervisor.
	Metadata() *Metadata
	// DeliverEvent hands a lifecycle event to the session. It is called from
	// the housekeeping goroutine and should not block for long.
	DeliverEvent(kind EventKind)
}

// ClosedReporter is handed to every session so it can report its own
// closure back to the supervisor.
type ClosedReporter interface {
	RegisterClosed(s Session)
}
