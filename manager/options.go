// File: manager/options.go
// Package manager defines functional options for the Manager.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package manager

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-telnetd/control"
)

// Option customizes manager initialization.
type Option func(*Manager)

// WithName sets the listener name used in logs.
func WithName(name string) Option {
	return func(m *Manager) {
		m.name = name
	}
}

// WithLogger sets the log sink. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.baseLog = log
	}
}

// WithMetrics shares a metrics registry with the caller.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(m *Manager) {
		if mr != nil {
			m.metrics = mr
		}
	}
}

// WithClock replaces time.Now for activity and idle computations.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
