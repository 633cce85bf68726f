// File: manager/query.go
// Package manager
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package manager

import (
	"net/netip"

	"github.com/momentics/hioload-telnetd/api"
)

// SessionCount returns the number of active sessions.
func (m *Manager) SessionCount() int { return m.registry.Count() }

// SessionAt returns the active session at index i in admission order.
func (m *Manager) SessionAt(i int) (api.Session, bool) { return m.registry.At(i) }

// Sessions returns a copy of the active sessions in admission order.
func (m *Manager) Sessions() []api.Session { return m.registry.Snapshot() }

// SessionsByAddress returns the active sessions whose peer IP equals addr.
// The result is a fresh slice.
func (m *Manager) SessionsByAddress(addr netip.Addr) []api.Session {
	addr = addr.Unmap()
	return m.registry.Filter(func(s api.Session) bool {
		return s.Metadata().Addr() == addr
	})
}

// PendingRemovals returns how many closed sessions await the next cycle.
func (m *Manager) PendingRemovals() int { return m.registry.PendingCount() }
