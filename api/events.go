// File: api/events.go
// Package api defines session lifecycle event kinds.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventKind classifies a lifecycle event delivered to a Session.
type EventKind int

const (
	// EventIdle is delivered once per idle episode when a session exceeds
	// the warning timeout.
	EventIdle EventKind = iota + 1
	// EventTimedOut is delivered on every housekeeping cycle while a session
	// stays idle past warning + disconnect timeouts.
	EventTimedOut
	// EventBroken marks a session whose transport failed. Reserved for
	// session implementations; the supervisor does not emit it.
	EventBroken
)

// String returns the event name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventIdle:
		return "idle"
	case EventTimedOut:
		return "timedout"
	case EventBroken:
		return "broken"
	default:
		return "unknown"
	}
}
