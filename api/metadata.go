// File: api/metadata.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-session metadata shared between a session and the supervisor.

package api

import (
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Metadata is the mutable record the supervisor keeps about a session.
// The session updates activity; the supervisor raises the warned flag.
type Metadata struct {
	mu           sync.RWMutex
	id           string
	remote       net.Addr
	addr         netip.Addr
	created      time.Time
	lastActivity time.Time
	warned       bool
	loginShell   string
	lineMode     bool
}

// NewMetadata builds metadata for a freshly accepted connection.
func NewMetadata(remote net.Addr, addr netip.Addr, loginShell string, lineMode bool, now time.Time) *Metadata {
	return &Metadata{
		id:           uuid.NewString(),
		remote:       remote,
		addr:         addr,
		created:      now,
		lastActivity: now,
		loginShell:   loginShell,
		lineMode:     lineMode,
	}
}

// ID returns the unique session identifier.
func (m *Metadata) ID() string { return m.id }

// RemoteAddr returns the transport-level peer address.
func (m *Metadata) RemoteAddr() net.Addr { return m.remote }

// Addr returns the peer IP without port, used for policy and lookups.
func (m *Metadata) Addr() netip.Addr { return m.addr }

// Created returns the admission time.
func (m *Metadata) Created() time.Time { return m.created }

// LoginShell returns the configured login shell name.
func (m *Metadata) LoginShell() string { return m.loginShell }

// LineMode reports line input mode; false means character mode.
func (m *Metadata) LineMode() bool { return m.lineMode }

// LastActivity returns the time of the last recorded activity.
func (m *Metadata) LastActivity() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastActivity
}

// Touch records activity at t. It does not clear the warned flag.
func (m *Metadata) Touch(t time.Time) {
	m.mu.Lock()
	m.lastActivity = t
	m.mu.Unlock()
}

// Warned reports whether an idle warning was issued for the current episode.
func (m *Metadata) Warned() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.warned
}

// SetWarned sets the warned flag.
func (m *Metadata) SetWarned(v bool) {
	m.mu.Lock()
	m.warned = v
	m.mu.Unlock()
}

// MarkWarned flips warned false->true and reports whether it did. The
// check and the set happen under one lock.
func (m *Metadata) MarkWarned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.warned {
		return false
	}
	m.warned = true
	return true
}

// IdleFor returns how long the session has been idle at now.
func (m *Metadata) IdleFor(now time.Time) time.Duration {
	return now.Sub(m.LastActivity())
}
