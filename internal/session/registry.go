// File: internal/session/registry.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Mutex-guarded registry of active sessions and sessions pending removal.

package session

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-telnetd/api"
)

// Registry is the authoritative set of active sessions plus the queue of
// sessions that reported themselves closed. One mutex guards both, so a
// session is never observed active and pending removal inconsistently.
type Registry struct {
	mu       sync.Mutex
	active   []api.Session
	pending  *queue.Queue
	queued   map[api.Session]struct{}
	reserved int
	stopping bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active:  make([]api.Session, 0, 64),
		pending: queue.New(),
		queued:  make(map[api.Session]struct{}),
	}
}

// Reserve claims one admission slot if active sessions plus outstanding
// reservations stay below max. A successful reservation must be followed by
// exactly one Commit or Release.
func (r *Registry) Reserve(max int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping || len(r.active)+r.reserved >= max {
		return false
	}
	r.reserved++
	return true
}

// Release returns a reservation that will not be committed.
func (r *Registry) Release() {
	r.mu.Lock()
	if r.reserved > 0 {
		r.reserved--
	}
	r.mu.Unlock()
}

// Commit turns a reservation into an active session and returns the new
// active count. It returns false when the registry started stopping after
// the reservation was taken; the caller then owns s and must close it.
func (r *Registry) Commit(s api.Session) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reserved > 0 {
		r.reserved--
	}
	if r.stopping {
		return len(r.active), false
	}
	r.insertLocked(s)
	return len(r.active), true
}

// Insert adds s without a capacity check. Duplicates are ignored.
func (r *Registry) Insert(s api.Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(s)
	return len(r.active)
}

func (r *Registry) insertLocked(s api.Session) {
	for _, cur := range r.active {
		if cur == s {
			return
		}
	}
	r.active = append(r.active, s)
}

// EnqueueClosed queues s for removal. It is a no-op when s is already
// queued or the registry is stopping, and reports whether s was queued.
func (r *Registry) EnqueueClosed(s api.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping {
		return false
	}
	if _, dup := r.queued[s]; dup {
		return false
	}
	r.queued[s] = struct{}{}
	r.pending.Add(s)
	return true
}

// DrainClosed empties the pending queue, removes every drained session from
// the active list and returns them in queue order.
func (r *Registry) DrainClosed() []api.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.pending.Length()
	if n == 0 {
		return nil
	}
	drained := make([]api.Session, 0, n)
	for r.pending.Length() > 0 {
		s := r.pending.Remove().(api.Session)
		delete(r.queued, s)
		drained = append(drained, s)
	}
	r.removeLocked(drained)
	return drained
}

// RemoveAll removes every listed session from the active list. Absent
// sessions are ignored.
func (r *Registry) RemoveAll(list []api.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(list)
}

func (r *Registry) removeLocked(list []api.Session) {
	if len(list) == 0 {
		return
	}
	drop := make(map[api.Session]struct{}, len(list))
	for _, s := range list {
		drop[s] = struct{}{}
	}
	kept := r.active[:0]
	for _, s := range r.active {
		if _, ok := drop[s]; !ok {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(r.active); i++ {
		r.active[i] = nil
	}
	r.active = kept
}

// Snapshot returns a point-in-time copy of the active list.
func (r *Registry) Snapshot() []api.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.Session, len(r.active))
	copy(out, r.active)
	return out
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// PendingCount returns the number of sessions waiting to be drained.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.Length()
}

// At returns the active session at index i in insertion order.
func (r *Registry) At(i int) (api.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.active) {
		return nil, false
	}
	return r.active[i], true
}

// Filter returns the active sessions matching keep, in insertion order.
func (r *Registry) Filter(keep func(api.Session) bool) []api.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []api.Session
	for _, s := range r.active {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// BeginStop marks the registry as stopping. Later reservations, commits and
// closed-session reports are refused.
func (r *Registry) BeginStop() {
	r.mu.Lock()
	r.stopping = true
	r.mu.Unlock()
}

// Stopping reports whether BeginStop was called.
func (r *Registry) Stopping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopping
}

// ForceCloseAndClear marks the registry stopping, detaches the active list
// and pending queue under the lock, then closes the detached sessions
// sequentially. Closing happens outside the lock so a session's Close may
// report itself closed without deadlocking. onErr is called for each failing
// close; a failure never stops the remaining closes. A close that blocks
// delays every session after it. It returns the number of clean closes.
func (r *Registry) ForceCloseAndClear(onErr func(api.Session, error)) int {
	r.mu.Lock()
	r.stopping = true
	detached := r.active
	r.active = make([]api.Session, 0)
	for r.pending.Length() > 0 {
		r.pending.Remove()
	}
	r.queued = make(map[api.Session]struct{})
	r.mu.Unlock()

	closed := 0
	for _, s := range detached {
		if err := closeSession(s); err != nil {
			if onErr != nil {
				onErr(s, err)
			}
			continue
		}
		closed++
	}
	return closed
}

// closeSession converts a panicking Close into an error.
func closeSession(s api.Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("close panicked: %v", r)
		}
	}()
	return s.Close()
}
