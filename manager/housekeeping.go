// File: manager/housekeeping.go
// Package manager
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package manager

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/momentics/hioload-telnetd/api"
)

// housekeep runs sweep cycles until stop is closed. A panic escaping a cycle
// ends the loop for good: it is recorded in HousekeepingErr and
// housekeeping.failed is raised, and no session is evaluated again.
func (m *Manager) housekeep(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("housekeeping panicked: %v", r)
			m.cfgMu.Lock()
			m.hkErr = err
			m.cfgMu.Unlock()
			m.metrics.Set("housekeeping.failed", int64(1))
			m.log.Error().Err(err).Bytes("stack", debug.Stack()).Msg("housekeeping stopped")
		}
	}()

	for {
		if m.stopping.Load() {
			return
		}
		m.sweep()

		t := time.NewTimer(m.HousekeepingInterval())
		select {
		case <-stop:
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// sweep performs one housekeeping cycle.
func (m *Manager) sweep() {
	if m.stopping.Load() {
		return
	}
	for _, s := range m.registry.DrainClosed() {
		m.log.Debug().Str("session", s.ID()).Msg("removed closed connection")
		m.metrics.Inc("sessions.removed")
	}

	cfg := m.Config()
	warnAfter := cfg.WarningTimeout
	killAfter := cfg.WarningTimeout + cfg.DisconnectTimeout
	now := m.now()

	for _, s := range m.registry.Snapshot() {
		if !s.IsActive() {
			if m.registry.EnqueueClosed(s) {
				m.log.Debug().Str("session", s.ID()).Msg("found dead connection")
			}
			continue
		}
		md := s.Metadata()
		idle := md.IdleFor(now)
		switch {
		case idle > killAfter:
			m.log.Debug().Str("session", s.ID()).Dur("idle", idle).Msg("connection timed out")
			m.metrics.Inc("events.timedout")
			s.DeliverEvent(api.EventTimedOut)
		case idle > warnAfter && md.MarkWarned():
			m.log.Debug().Str("session", s.ID()).Dur("idle", idle).Msg("connection idle")
			m.metrics.Inc("events.idle")
			s.DeliverEvent(api.EventIdle)
		}
	}
	m.metrics.Set("sessions.active", int64(m.registry.Count()))
	m.metrics.Inc("housekeeping.cycles")
}
