// File: manager/manager.go
// Package manager
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package manager

import (
	"io"
	"net"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/control"
	"github.com/momentics/hioload-telnetd/internal/session"
)

// SessionFactory binds an admitted connection to a new session. The shell
// and terminal collaborators a session needs are captured by the factory.
// The session must call reporter.RegisterClosed when it ends on its own.
type SessionFactory func(conn net.Conn, md *api.Metadata, reporter api.ClosedReporter) (api.Session, error)

// Manager supervises every session of one listener.
type Manager struct {
	name     string
	factory  SessionFactory
	registry *session.Registry
	metrics  *control.MetricsRegistry
	now      func() time.Time
	baseLog  zerolog.Logger
	log      zerolog.Logger

	admitMu sync.RWMutex

	cfgMu     sync.RWMutex
	cfg       Config
	policySrc *policySource // nil when the policy was not built from settings
	hkErr     error

	reconfMu sync.Mutex

	runMu  sync.Mutex
	stopCh chan struct{}
	done   chan struct{}

	stopping atomic.Bool
	stopOnce sync.Once
}

var (
	_ api.ClosedReporter   = (*Manager)(nil)
	_ api.GracefulShutdown = (*Manager)(nil)
)

// New constructs a Manager with the given Config and options. The
// housekeeping goroutine is not started until Start.
func New(cfg Config, factory SessionFactory, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, ErrNilFactory
	}
	m := &Manager{
		name:     "std",
		factory:  factory,
		registry: session.NewRegistry(),
		metrics:  control.NewMetricsRegistry(),
		now:      time.Now,
		baseLog:  zerolog.Nop(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.baseLog.With().Str("component", "connection-manager").Str("listener", m.name).Logger()
	m.metrics.Set("sessions.active", int64(0))
	return m, nil
}

// Name returns the listener name.
func (m *Manager) Name() string { return m.name }

// Metrics returns the registry the manager reports into.
func (m *Manager) Metrics() *control.MetricsRegistry { return m.metrics }

// Start launches the housekeeping goroutine and returns immediately.
func (m *Manager) Start() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.stopping.Load() {
		return ErrStopped
	}
	if m.stopCh != nil {
		return api.ErrAlreadyRunning
	}
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	go m.housekeep(m.stopCh, m.done)
	m.log.Debug().Msg("started")
	return nil
}

// Stop refuses new admissions and waits for those in flight, halts
// housekeeping and waits for it to exit, then closes every remaining
// session one after another and clears the registry. Close failures are
// logged per session and never abort the shutdown. A session whose Close
// blocks delays all sessions after it. Stop is idempotent.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.log.Debug().Msg("stopping")
		m.stopping.Store(true)
		m.registry.BeginStop()
		// Wait out admissions already past their stopping check.
		m.admitMu.Lock()
		m.admitMu.Unlock()

		m.runMu.Lock()
		stopCh, done := m.stopCh, m.done
		m.runMu.Unlock()
		if stopCh != nil {
			close(stopCh)
			<-done
		}

		closed := m.registry.ForceCloseAndClear(func(s api.Session, err error) {
			m.log.Error().Err(err).Str("session", s.ID()).Msg("close failed during stop")
			m.metrics.Inc("sessions.close_failed")
		})
		m.metrics.Set("sessions.active", int64(0))
		m.log.Debug().Int("closed", closed).Msg("stopped")
	})
}

// Shutdown implements api.GracefulShutdown.
func (m *Manager) Shutdown() error {
	m.Stop()
	return nil
}

// Stopping reports whether Stop has been called.
func (m *Manager) Stopping() bool { return m.stopping.Load() }

// RegisterClosed implements api.ClosedReporter. Sessions call it when they
// end; the session is removed on the next housekeeping cycle. Repeated
// reports before that cycle are ignored, as are reports during Stop.
func (m *Manager) RegisterClosed(s api.Session) {
	if s == nil || m.stopping.Load() {
		return
	}
	if m.registry.EnqueueClosed(s) {
		m.log.Debug().Str("session", s.ID()).Msg("registered closed connection")
	}
}

// HousekeepingErr returns the failure that ended housekeeping, if any.
func (m *Manager) HousekeepingErr() error {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.hkErr
}

// Config returns a copy of the current tunables.
func (m *Manager) Config() Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// MaxConnections returns the admission limit.
func (m *Manager) MaxConnections() int { return m.Config().MaxConnections }

// SetMaxConnections changes the admission limit for later admissions.
// Sessions already admitted are kept.
func (m *Manager) SetMaxConnections(n int) {
	m.update(func(c *Config) { c.MaxConnections = n })
}

// WarningTimeout returns the idle time before an IDLE event.
func (m *Manager) WarningTimeout() time.Duration { return m.Config().WarningTimeout }

// SetWarningTimeout takes effect on the next housekeeping cycle.
func (m *Manager) SetWarningTimeout(d time.Duration) {
	m.update(func(c *Config) { c.WarningTimeout = d })
}

// DisconnectTimeout returns the idle time past the warning before TIMEDOUT.
func (m *Manager) DisconnectTimeout() time.Duration { return m.Config().DisconnectTimeout }

// SetDisconnectTimeout takes effect on the next housekeeping cycle.
func (m *Manager) SetDisconnectTimeout(d time.Duration) {
	m.update(func(c *Config) { c.DisconnectTimeout = d })
}

// HousekeepingInterval returns the pause between cycles.
func (m *Manager) HousekeepingInterval() time.Duration { return m.Config().HousekeepingInterval }

// SetHousekeepingInterval takes effect after the current pause. Non-positive
// values are ignored.
func (m *Manager) SetHousekeepingInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	m.update(func(c *Config) { c.HousekeepingInterval = d })
}

// LoginShell returns the shell name given to new sessions.
func (m *Manager) LoginShell() string { return m.Config().LoginShell }

// SetLoginShell changes the shell for later admissions. Empty names are ignored.
func (m *Manager) SetLoginShell(shell string) {
	if shell == "" {
		return
	}
	m.update(func(c *Config) { c.LoginShell = shell })
}

// LineMode reports whether new sessions start in line mode.
func (m *Manager) LineMode() bool { return m.Config().LineMode }

// SetLineMode changes the input mode for later admissions.
func (m *Manager) SetLineMode(v bool) {
	m.update(func(c *Config) { c.LineMode = v })
}

// Policy returns the active admission policy, nil when none.
func (m *Manager) Policy() api.AdmissionPolicy { return m.Config().Policy }

// SetPolicy swaps the admission policy; nil admits every address. A
// replaced policy that implements io.Closer is closed.
func (m *Manager) SetPolicy(p api.AdmissionPolicy) {
	m.cfgMu.Lock()
	old := m.cfg.Policy
	m.cfg.Policy = p
	m.policySrc = nil
	m.cfgMu.Unlock()
	if !samePolicy(old, p) {
		m.closeReplaced(old)
	}
}

func (m *Manager) update(fn func(*Config)) {
	m.cfgMu.Lock()
	fn(&m.cfg)
	m.cfgMu.Unlock()
}

// Reconfigure re-reads the keys under name and applies them. On error the
// current configuration is kept. The current policy is kept when its id and
// policy keys are unchanged; otherwise a replaced policy that implements
// io.Closer is closed.
func (m *Manager) Reconfigure(name string, s *control.Settings) error {
	m.reconfMu.Lock()
	defer m.reconfMu.Unlock()

	m.cfgMu.RLock()
	cur := m.policySrc
	m.cfgMu.RUnlock()

	p, err := parseSettings(name, s, cur)
	if err != nil {
		return &ConfigError{Name: name, Err: err}
	}
	if err := p.Config.Validate(); err != nil {
		if !p.policyReused {
			closePolicy(p.Policy)
		}
		return &ConfigError{Name: name, Err: err}
	}
	m.cfgMu.Lock()
	old := m.cfg.Policy
	m.cfg = p.Config
	m.policySrc = &policySource{id: p.policyID, scope: p.policyScope, policy: p.Policy}
	m.cfgMu.Unlock()

	if !p.policyReused && !samePolicy(old, p.Policy) {
		m.closeReplaced(old)
	}
	m.log.Info().Str("policy", p.policyID).Bool("policy_reused", p.policyReused).
		Int("maxcon", p.MaxConnections).Msg("reconfigured")
	return nil
}

func (m *Manager) closeReplaced(old api.AdmissionPolicy) {
	if err := closePolicy(old); err != nil {
		m.log.Warn().Err(err).Msg("closing replaced policy")
	}
}

func closePolicy(p api.AdmissionPolicy) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// samePolicy compares two policies without panicking on uncomparable types.
func samePolicy(a, b api.AdmissionPolicy) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	return ta == reflect.TypeOf(b) && ta.Comparable() && a == b
}
