package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/fake"
	"github.com/momentics/hioload-telnetd/internal/session"
)

func newSessions(n int) []*fake.Session {
	out := make([]*fake.Session, n)
	for i := range out {
		out[i] = fake.NewSession("10.0.0.1:4000", time.Now())
	}
	return out
}

func TestRegistryInsertKeepsOrderWithoutDuplicates(t *testing.T) {
	r := session.NewRegistry()
	ss := newSessions(3)
	for _, s := range ss {
		r.Insert(s)
	}
	assert.Equal(t, 3, r.Insert(ss[1]), "duplicate insert is ignored")

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	for i, s := range ss {
		assert.Same(t, s, snap[i])
		got, ok := r.At(i)
		require.True(t, ok)
		assert.Same(t, s, got)
	}
	_, ok := r.At(3)
	assert.False(t, ok)
	_, ok = r.At(-1)
	assert.False(t, ok)
}

func TestRegistrySnapshotIsDetached(t *testing.T) {
	r := session.NewRegistry()
	ss := newSessions(2)
	r.Insert(ss[0])
	snap := r.Snapshot()
	r.Insert(ss[1])
	assert.Len(t, snap, 1)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryEnqueueClosedDeduplicates(t *testing.T) {
	r := session.NewRegistry()
	ss := newSessions(2)
	r.Insert(ss[0])
	r.Insert(ss[1])

	assert.True(t, r.EnqueueClosed(ss[0]))
	assert.False(t, r.EnqueueClosed(ss[0]))
	assert.Equal(t, 1, r.PendingCount())

	drained := r.DrainClosed()
	require.Len(t, drained, 1)
	assert.Same(t, ss[0], drained[0])
	assert.Equal(t, 1, r.Count())
	assert.Nil(t, r.DrainClosed())

	// After draining the session may be queued again.
	assert.True(t, r.EnqueueClosed(ss[0]))
	r.DrainClosed()
	assert.Equal(t, 1, r.Count(), "removing an absent session is a no-op")
}

func TestRegistryRemoveAll(t *testing.T) {
	r := session.NewRegistry()
	ss := newSessions(4)
	for _, s := range ss {
		r.Insert(s)
	}
	r.RemoveAll([]api.Session{ss[1], ss[3], fake.NewSession("10.0.0.2:1", time.Now())})
	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Same(t, ss[0], snap[0])
	assert.Same(t, ss[2], snap[1])
}

func TestRegistryReserveBoundsCapacity(t *testing.T) {
	r := session.NewRegistry()
	require.True(t, r.Reserve(2))
	require.True(t, r.Reserve(2))
	assert.False(t, r.Reserve(2), "reservations count toward capacity")

	ss := newSessions(2)
	n, ok := r.Commit(ss[0])
	require.True(t, ok)
	assert.Equal(t, 1, n)
	r.Release()
	assert.True(t, r.Reserve(2))
	_, ok = r.Commit(ss[1])
	require.True(t, ok)
	assert.False(t, r.Reserve(2))
}

func TestRegistryConcurrentReservationsNeverExceedMax(t *testing.T) {
	const max = 8
	r := session.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !r.Reserve(max) {
				return
			}
			r.Commit(fake.NewSession("10.0.0.3:1", time.Now()))
		}()
	}
	wg.Wait()
	assert.Equal(t, max, r.Count())
}

func TestRegistryStoppingRefusesWork(t *testing.T) {
	r := session.NewRegistry()
	ss := newSessions(2)
	r.Insert(ss[0])
	require.True(t, r.Reserve(5))

	r.BeginStop()
	assert.True(t, r.Stopping())
	assert.False(t, r.EnqueueClosed(ss[0]))
	assert.False(t, r.Reserve(5))
	_, ok := r.Commit(ss[1])
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryForceCloseAndClear(t *testing.T) {
	r := session.NewRegistry()
	ss := newSessions(3)
	for _, s := range ss {
		r.Insert(s)
	}
	ss[1].FailClose(fake.ErrClose)
	r.EnqueueClosed(ss[2])

	var failed []api.Session
	closed := r.ForceCloseAndClear(func(s api.Session, err error) {
		assert.ErrorIs(t, err, fake.ErrClose)
		failed = append(failed, s)
	})

	assert.Equal(t, 2, closed)
	require.Len(t, failed, 1)
	assert.Same(t, ss[1], failed[0])
	for _, s := range ss {
		assert.Equal(t, 1, s.Closed(), "every session is closed even after a failure")
	}
	assert.Zero(t, r.Count())
	assert.Zero(t, r.PendingCount())
	assert.True(t, r.Stopping())
}

type panickingSession struct{ *fake.Session }

func (p panickingSession) Close() error { panic("boom") }

func TestRegistryForceCloseRecoversPanics(t *testing.T) {
	r := session.NewRegistry()
	bad := &panickingSession{fake.NewSession("10.0.0.4:1", time.Now())}
	good := fake.NewSession("10.0.0.5:1", time.Now())
	r.Insert(bad)
	r.Insert(good)

	var errs int
	r.ForceCloseAndClear(func(api.Session, error) { errs++ })
	assert.Equal(t, 1, errs)
	assert.Equal(t, 1, good.Closed())
}
