package tcp_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/transport/tcp"
)

type collector struct {
	mu    sync.Mutex
	conns []net.Conn
}

func (c *collector) Admit(conn net.Conn) {
	c.mu.Lock()
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

func (c *collector) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		conn.Close()
	}
}

type panicker struct{}

func (panicker) Admit(net.Conn) { panic("admit failed") }

func TestListenerAdmitsConnections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := tcp.Listen(ctx, tcp.ListenerConfig{Addr: "127.0.0.1:0", ReuseAddr: true})
	require.NoError(t, err)

	col := &collector{}
	defer col.closeAll()
	errc := make(chan error, 1)
	go func() { errc <- l.Serve(ctx, col) }()

	for i := 0; i < 3; i++ {
		c, err := net.Dial("tcp", l.Addr().String())
		require.NoError(t, err)
		defer c.Close()
	}
	require.Eventually(t, func() bool { return col.count() == 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	_, err = net.DialTimeout("tcp", l.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err)
}

func TestListenerCloseStopsServe(t *testing.T) {
	l, err := tcp.Listen(context.Background(), tcp.ListenerConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	errc := make(chan error, 1)
	go func() { errc <- l.Serve(context.Background(), &collector{}) }()

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	select {
	case err := <-errc:
		// Close may win the race with Serve's first accept.
		if err != nil {
			assert.ErrorIs(t, err, api.ErrListenerClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestServeAfterClose(t *testing.T) {
	l, err := tcp.Listen(context.Background(), tcp.ListenerConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Serve(context.Background(), &collector{}), api.ErrListenerClosed)
}

func TestListenerSurvivesAdmitterPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := tcp.Listen(ctx, tcp.ListenerConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	go l.Serve(ctx, panicker{})

	c, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = c.Read(make([]byte, 1))
	assert.Error(t, err, "connection is closed after the panic")

	c2, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err, "listener keeps accepting")
	c2.Close()
}

func TestListenInvalidAddress(t *testing.T) {
	_, err := tcp.Listen(context.Background(), tcp.ListenerConfig{Addr: "256.0.0.1:99999"})
	assert.Error(t, err)
}

func TestServeRejectsNilAdmitter(t *testing.T) {
	l, err := tcp.Listen(context.Background(), tcp.ListenerConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer l.Close()
	assert.Error(t, l.Serve(context.Background(), nil))
}
