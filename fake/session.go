// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake api.Session recording every interaction.

package fake

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/momentics/hioload-telnetd/api"
)

// ErrClose is returned by a session configured to fail on Close.
var ErrClose = errors.New("fake: close failed")

// Session is a fake implementation of api.Session for testing.
type Session struct {
	mu            sync.Mutex
	md            *api.Metadata
	conn          net.Conn
	reporter      api.ClosedReporter
	active        bool
	started       int
	closed        int
	events        []api.EventKind
	closeErr      error
	eventPanic    any
	reportOnClose bool
}

// NewSession creates an active, not yet started session for addr.
func NewSession(addr string, now time.Time) *Session {
	ap := netip.MustParseAddrPort(addr)
	remote := net.TCPAddrFromAddrPort(ap)
	return &Session{
		md:     api.NewMetadata(remote, ap.Addr(), "simple", false, now),
		active: true,
	}
}

// NewBoundSession creates a session the way a SessionFactory would.
func NewBoundSession(conn net.Conn, md *api.Metadata, reporter api.ClosedReporter) *Session {
	return &Session{md: md, conn: conn, reporter: reporter, active: true}
}

// ID implements api.Session.
func (s *Session) ID() string { return s.md.ID() }

// Metadata implements api.Session.
func (s *Session) Metadata() *api.Metadata { return s.md }

// Start implements api.Session.
func (s *Session) Start() {
	s.mu.Lock()
	s.started++
	s.mu.Unlock()
}

// Close implements api.Session. It marks the session inactive, closes the
// bound connection and, when configured, reports closure to the supervisor.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed++
	s.active = false
	err := s.closeErr
	conn, reporter, report := s.conn, s.reporter, s.reportOnClose
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if report && reporter != nil {
		reporter.RegisterClosed(s)
	}
	return err
}

// IsActive implements api.Session.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// DeliverEvent implements api.Session.
func (s *Session) DeliverEvent(kind api.EventKind) {
	s.mu.Lock()
	p := s.eventPanic
	s.events = append(s.events, kind)
	s.mu.Unlock()
	if p != nil {
		panic(p)
	}
}

// Kill marks the session dead without closing it, as a broken transport would.
func (s *Session) Kill() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// FailClose makes every later Close return err.
func (s *Session) FailClose(err error) {
	s.mu.Lock()
	s.closeErr = err
	s.mu.Unlock()
}

// PanicOnEvent makes DeliverEvent panic with v after recording the event.
func (s *Session) PanicOnEvent(v any) {
	s.mu.Lock()
	s.eventPanic = v
	s.mu.Unlock()
}

// ReportOnClose makes Close call RegisterClosed on the bound reporter.
func (s *Session) ReportOnClose() {
	s.mu.Lock()
	s.reportOnClose = true
	s.mu.Unlock()
}

// Reporter returns the reporter the session was bound to.
func (s *Session) Reporter() api.ClosedReporter { return s.reporter }

// Started returns the number of Start calls.
func (s *Session) Started() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Closed returns the number of Close calls.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Events returns a copy of every delivered event.
func (s *Session) Events() []api.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.EventKind, len(s.events))
	copy(out, s.events)
	return out
}

// EventCount returns how many events of kind were delivered.
func (s *Session) EventCount(kind api.EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.events {
		if k == kind {
			n++
		}
	}
	return n
}
