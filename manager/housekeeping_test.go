package manager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/fake"
)

func TestSweepDeliversSingleIdle(t *testing.T) {
	m, rec, clk := newTestManager(t, testConfig())
	m.Admit(fake.NewConn("192.0.2.1:1"))
	s := rec.built()[0]

	clk.Advance(time.Second)
	m.sweep()
	assert.Empty(t, s.Events(), "idle equal to the warning timeout is not yet idle")

	clk.Advance(100 * time.Millisecond)
	for i := 0; i < 10; i++ {
		m.sweep()
		clk.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 1, s.EventCount(api.EventIdle))
	assert.Zero(t, s.EventCount(api.EventTimedOut))
	assert.True(t, s.Metadata().Warned())
}

func TestSweepActivityDoesNotClearWarned(t *testing.T) {
	m, rec, clk := newTestManager(t, testConfig())
	m.Admit(fake.NewConn("192.0.2.1:1"))
	s := rec.built()[0]

	clk.Advance(1500 * time.Millisecond)
	m.sweep()
	require.Equal(t, 1, s.EventCount(api.EventIdle))

	s.Metadata().Touch(clk.Now())
	clk.Advance(1500 * time.Millisecond)
	m.sweep()
	assert.Equal(t, 1, s.EventCount(api.EventIdle), "a new episode needs the session to reset warned")

	s.Metadata().SetWarned(false)
	m.sweep()
	assert.Equal(t, 2, s.EventCount(api.EventIdle))
}

func TestSweepTimedOutRepeatsEveryCycle(t *testing.T) {
	m, rec, clk := newTestManager(t, testConfig())
	m.Admit(fake.NewConn("192.0.2.1:1"))
	s := rec.built()[0]

	clk.Advance(3 * time.Second)
	m.sweep()
	assert.Empty(t, s.Events(), "the disconnect threshold is exclusive")

	for i := 0; i < 5; i++ {
		clk.Advance(time.Millisecond)
		m.sweep()
	}
	assert.Equal(t, 5, s.EventCount(api.EventTimedOut))
	assert.Zero(t, s.EventCount(api.EventIdle), "a session past both thresholds is never warned")

	s.Metadata().Touch(clk.Now())
	m.sweep()
	assert.Equal(t, 5, s.EventCount(api.EventTimedOut), "renewed activity stops the pressure")
}

func TestSweepRemovesSelfReportedSessions(t *testing.T) {
	m, rec, _ := newTestManager(t, testConfig())
	m.Admit(fake.NewConn("192.0.2.1:1"))
	m.Admit(fake.NewConn("192.0.2.2:1"))
	s := rec.built()[0]

	m.RegisterClosed(s)
	m.RegisterClosed(s)
	assert.Equal(t, 1, m.PendingRemovals())
	assert.Equal(t, 2, m.SessionCount())

	m.sweep()
	assert.Equal(t, 1, m.SessionCount())
	assert.Zero(t, m.PendingRemovals())
	remaining, ok := m.SessionAt(0)
	require.True(t, ok)
	assert.Same(t, rec.built()[1], remaining)
	assert.Equal(t, int64(1), m.Metrics().Counter("sessions.removed"))
}

func TestSweepDetectsDeadSessions(t *testing.T) {
	m, rec, clk := newTestManager(t, testConfig())
	m.Admit(fake.NewConn("192.0.2.1:1"))
	s := rec.built()[0]
	s.Kill()
	clk.Advance(time.Hour)

	m.sweep()
	assert.Equal(t, 1, m.PendingRemovals())
	assert.Empty(t, s.Events(), "dead sessions are not evaluated")

	m.sweep()
	assert.Zero(t, m.SessionCount())
	assert.Empty(t, s.Events())
}

func TestSweepConcreteScenario(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	cfg.WarningTimeout = 1000 * time.Millisecond
	cfg.DisconnectTimeout = 2000 * time.Millisecond
	cfg.HousekeepingInterval = 100 * time.Millisecond
	m, rec, clk := newTestManager(t, cfg)

	m.Admit(fake.NewConn("192.0.2.10:1"))
	require.Equal(t, 1, m.SessionCount())
	b := fake.NewConn("192.0.2.11:1")
	m.Admit(b)
	require.Equal(t, 1, m.SessionCount())
	require.Len(t, rec.built(), 1)
	a := rec.built()[0]

	step := func() {
		clk.Advance(cfg.HousekeepingInterval)
		m.sweep()
	}
	for i := 0; i < 11; i++ {
		step()
	}
	assert.Equal(t, 1, a.EventCount(api.EventIdle))
	assert.Zero(t, a.EventCount(api.EventTimedOut))

	// TIMEDOUT starts once idle passes 3000ms, at 3100ms.
	for a.EventCount(api.EventTimedOut) < 21 {
		step()
	}
	assert.Equal(t, 1, a.EventCount(api.EventIdle))
	assert.Equal(t, 3100*time.Millisecond+20*cfg.HousekeepingInterval, a.Metadata().IdleFor(clk.Now()))

	a.ReportOnClose()
	require.NoError(t, a.Close())
	before := len(a.Events())
	step()
	assert.Zero(t, m.SessionCount())
	step()
	assert.Len(t, a.Events(), before, "removed sessions receive nothing")

	m.Admit(fake.NewConn("192.0.2.12:1"))
	assert.Equal(t, 1, m.SessionCount(), "the freed slot can be reused")
}

func TestHousekeepingFailStop(t *testing.T) {
	cfg := testConfig()
	cfg.WarningTimeout = 0
	cfg.HousekeepingInterval = 5 * time.Millisecond
	m, rec, clk := newTestManager(t, cfg)
	m.Admit(fake.NewConn("192.0.2.1:1"))
	s := rec.built()[0]
	s.PanicOnEvent("handler exploded")
	clk.Advance(time.Second)

	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return m.HousekeepingErr() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, m.HousekeepingErr().Error(), "handler exploded")
	assert.Equal(t, int64(1), m.Metrics().Counter("housekeeping.failed"))

	// The loop is gone: closed sessions are never drained again.
	m.RegisterClosed(s)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, m.PendingRemovals())
	assert.Equal(t, 1, s.EventCount(api.EventIdle))

	m.Stop()
	assert.Zero(t, m.SessionCount())
}

func TestHousekeepingRealTime(t *testing.T) {
	cfg := testConfig()
	cfg.WarningTimeout = 20 * time.Millisecond
	cfg.DisconnectTimeout = time.Hour
	cfg.HousekeepingInterval = 5 * time.Millisecond
	rec := &recorder{}
	m, err := New(cfg, rec.factory)
	require.NoError(t, err)
	defer m.Stop()

	require.NoError(t, m.Start())
	m.Admit(fake.NewConn("192.0.2.1:1"))
	s := rec.built()[0]

	require.Eventually(t, func() bool { return s.EventCount(api.EventIdle) == 1 }, 2*time.Second, 5*time.Millisecond)
	s.ReportOnClose()
	require.NoError(t, s.Close())
	require.Eventually(t, func() bool { return m.SessionCount() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.EventCount(api.EventIdle))
}
