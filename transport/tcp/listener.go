// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp provides the TCP listener and accept loop.

package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-telnetd/api"
)

// Admitter receives every accepted connection and owns it from then on.
type Admitter interface {
	Admit(conn net.Conn)
}

// ListenerConfig holds configuration for the TCP listener.
type ListenerConfig struct {
	Addr      string        // TCP address to bind (e.g., ":2323")
	KeepAlive time.Duration // TCP keepalive period; negative disables it
	ReuseAddr bool          // set SO_REUSEADDR and SO_REUSEPORT where supported
	Logger    zerolog.Logger
}

// Listener accepts TCP connections and hands them to an Admitter.
type Listener struct {
	cfg ListenerConfig
	log zerolog.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool
	wg     sync.WaitGroup
}

// Listen binds the socket described by cfg.
func Listen(ctx context.Context, cfg ListenerConfig) (*Listener, error) {
	lc := net.ListenConfig{KeepAlive: cfg.KeepAlive}
	if cfg.ReuseAddr {
		lc.Control = reuseControl
	}
	ln, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("tcp listen failed: %w", err)
	}
	l := &Listener{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "tcp-listener").Str("addr", ln.Addr().String()).Logger(),
		ln:  ln,
	}
	l.log.Info().Msg("listening")
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve runs the accept loop until ctx is done or Close is called. Every
// accepted connection is admitted on its own goroutine. Serve returns nil on
// a requested shutdown, api.ErrListenerClosed when the listener was closed
// before Serve was called, and the accept error otherwise.
func (l *Listener) Serve(ctx context.Context, a Admitter) error {
	if a == nil {
		return fmt.Errorf("%w: nil admitter", api.ErrInvalidArgument)
	}
	if l.isClosed() {
		return api.ErrListenerClosed
	}
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	var backoff time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isClosed() || errors.Is(err, net.ErrClosed) {
				l.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				l.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept error")
				time.Sleep(backoff)
				continue
			}
			l.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		l.wg.Add(1)
		go l.handoff(conn, a)
	}
}

// handoff admits conn. A panicking admitter loses only this connection.
func (l *Listener) handoff(conn net.Conn, a Admitter) {
	defer l.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Str("remote", conn.RemoteAddr().String()).Msg("panic in admission")
			conn.Close()
		}
	}()
	a.Admit(conn)
}

// Close stops accepting. Connections already handed off are unaffected.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.log.Info().Msg("closed")
	return l.ln.Close()
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
