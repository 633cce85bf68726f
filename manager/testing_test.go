package manager

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/fake"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder is a SessionFactory keeping every session it built.
type recorder struct {
	mu       sync.Mutex
	sessions []*fake.Session
	err      error
}

func (r *recorder) factory(conn net.Conn, md *api.Metadata, rep api.ClosedReporter) (api.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := fake.NewBoundSession(conn, md, rep)
	r.sessions = append(r.sessions, s)
	return s, nil
}

func (r *recorder) built() []*fake.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fake.Session(nil), r.sessions...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LoginShell = "simple"
	cfg.MaxConnections = 4
	cfg.WarningTimeout = time.Second
	cfg.DisconnectTimeout = 2 * time.Second
	cfg.HousekeepingInterval = 100 * time.Millisecond
	return cfg
}

func newTestManager(t *testing.T, cfg Config, opts ...Option) (*Manager, *recorder, *clock) {
	t.Helper()
	rec := &recorder{}
	clk := newClock()
	m, err := New(cfg, rec.factory, append([]Option{WithClock(clk.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m, rec, clk
}
