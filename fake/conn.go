// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake net.Conn with a configurable peer address.

package fake

import (
	"io"
	"net"
	"net/netip"
	"sync"
	"time"
)

// Conn is a fake implementation of net.Conn for testing admissions.
type Conn struct {
	mu     sync.Mutex
	remote net.Addr
	local  net.Addr
	closed int
}

// NewConn returns a connection whose peer is addr ("ip:port").
func NewConn(addr string) *Conn {
	return &Conn{
		remote: net.TCPAddrFromAddrPort(netip.MustParseAddrPort(addr)),
		local:  &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 23},
	}
}

// NewConnWithAddr returns a connection reporting an arbitrary peer address.
func NewConnWithAddr(remote net.Addr) *Conn {
	return &Conn{remote: remote, local: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 23}}
}

// Read implements net.Conn; it always reports end of stream.
func (c *Conn) Read(b []byte) (int, error) { return 0, io.EOF }

// Write implements net.Conn; it discards data unless closed.
func (c *Conn) Write(b []byte) (int, error) {
	if c.IsClosed() {
		return 0, net.ErrClosed
	}
	return len(b), nil
}

// Close implements net.Conn.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

// LocalAddr implements net.Conn.
func (c *Conn) LocalAddr() net.Addr { return c.local }

// RemoteAddr implements net.Conn.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// SetDeadline implements net.Conn.
func (c *Conn) SetDeadline(time.Time) error { return nil }

// SetReadDeadline implements net.Conn.
func (c *Conn) SetReadDeadline(time.Time) error { return nil }

// SetWriteDeadline implements net.Conn.
func (c *Conn) SetWriteDeadline(time.Time) error { return nil }

// IsClosed reports whether Close was called at least once.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed > 0
}
