// Package echosession
// Author: momentics <momentics@gmail.com>
//
// Line echo session used by the telnetd command and integration tests. It
// stands in for a real shell: every input line is written back.

package echosession

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-telnetd/api"
)

const writeTimeout = 5 * time.Second

// Messages written to the peer on lifecycle events.
const (
	IdleMessage     = "idle connection, input expected or the session will be closed"
	TimedOutMessage = "connection timed out"
)

// Session echoes lines back to the peer.
type Session struct {
	conn     net.Conn
	md       *api.Metadata
	reporter api.ClosedReporter
	log      zerolog.Logger
	now      func() time.Time

	writeMu sync.Mutex
	active  atomic.Bool
	once    sync.Once
}

var _ api.Session = (*Session)(nil)

// Factory returns a manager.SessionFactory compatible constructor.
func Factory(log zerolog.Logger) func(net.Conn, *api.Metadata, api.ClosedReporter) (api.Session, error) {
	return func(conn net.Conn, md *api.Metadata, reporter api.ClosedReporter) (api.Session, error) {
		return New(conn, md, reporter, log), nil
	}
}

// New binds a session to conn.
func New(conn net.Conn, md *api.Metadata, reporter api.ClosedReporter, log zerolog.Logger) *Session {
	s := &Session{
		conn:     conn,
		md:       md,
		reporter: reporter,
		log:      log.With().Str("session", md.ID()).Logger(),
		now:      time.Now,
	}
	s.active.Store(true)
	return s
}

func (s *Session) ID() string { return s.md.ID() }

func (s *Session) Metadata() *api.Metadata { return s.md }

func (s *Session) IsActive() bool { return s.active.Load() }

// Start greets the peer and begins reading on its own goroutine.
func (s *Session) Start() {
	mode := "character"
	if s.md.LineMode() {
		mode = "line"
	}
	s.writeLine(fmt.Sprintf("welcome, shell %s, %s mode", s.md.LoginShell(), mode))
	go s.readLoop()
}

func (s *Session) readLoop() {
	defer s.Close()
	sc := bufio.NewScanner(s.conn)
	for sc.Scan() {
		s.md.Touch(s.now())
		s.md.SetWarned(false)
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "quit" || line == "exit" {
			s.writeLine("bye")
			return
		}
		if err := s.writeLine(line); err != nil {
			return
		}
	}
	if err := sc.Err(); err != nil && s.IsActive() {
		s.log.Debug().Err(err).Msg("read failed")
	}
}

// DeliverEvent writes a notice for IDLE and closes on TIMEDOUT.
func (s *Session) DeliverEvent(kind api.EventKind) {
	switch kind {
	case api.EventIdle:
		s.writeLine(IdleMessage)
	case api.EventTimedOut:
		s.writeLine(TimedOutMessage)
		s.Close()
	case api.EventBroken:
		s.Close()
	}
}

// Close closes the connection and reports the closure once.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.active.Store(false)
		err = s.conn.Close()
		if s.reporter != nil {
			s.reporter.RegisterClosed(s)
		}
	})
	return err
}

func (s *Session) writeLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := s.conn.Write([]byte(line + "\r\n"))
	return err
}
