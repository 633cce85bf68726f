// File: server/server.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-telnetd/adapters"
	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/control"
	"github.com/momentics/hioload-telnetd/manager"
	"github.com/momentics/hioload-telnetd/transport/tcp"
)

// NewServer builds the Server facade. settings must hold the supervisor
// keys under cfg.Name; factory builds one session per admitted connection.
func NewServer(cfg *Config, settings *control.Settings, factory manager.SessionFactory, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if settings == nil {
		settings = control.NewSettings(DefaultSettings(cfg.Name))
	}
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	ctrl := adapters.NewControlAdapter(settings, nil)
	mopts := append([]manager.Option{
		manager.WithLogger(o.log),
		manager.WithMetrics(ctrl.Metrics()),
	}, o.managerOps...)
	mgr, err := manager.FromSettings(cfg.Name, settings, factory, mopts...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		log:      o.log.With().Str("component", "server").Str("listener", cfg.Name).Logger(),
		control:  ctrl,
		manager:  mgr,
		shutdown: make(chan struct{}),
	}
	ctrl.RegisterDebugProbe("sessions.count", func() any { return mgr.SessionCount() })
	ctrl.RegisterDebugProbe("sessions.pending", func() any { return mgr.PendingRemovals() })
	ctrl.RegisterDebugProbe("sessions", func() any { return describeSessions(mgr) })
	ctrl.RegisterDebugProbe("housekeeping.error", func() any {
		if err := mgr.HousekeepingErr(); err != nil {
			return err.Error()
		}
		return ""
	})
	ctrl.OnReload(s.reconfigure)
	return s, nil
}

// describeSessions lists id, peer and idle time of every active session.
func describeSessions(mgr *manager.Manager) []map[string]any {
	now := time.Now()
	list := mgr.Sessions()
	out := make([]map[string]any, 0, len(list))
	for _, sess := range list {
		md := sess.Metadata()
		out = append(out, map[string]any{
			"id":     sess.ID(),
			"remote": md.Addr().String(),
			"idle":   md.IdleFor(now).Round(time.Millisecond).String(),
			"warned": md.Warned(),
		})
	}
	return out
}

// reconfigure applies reloaded settings. A broken reload keeps the old
// configuration.
func (s *Server) reconfigure() {
	if err := s.manager.Reconfigure(s.cfg.Name, s.control.Settings()); err != nil {
		s.log.Error().Err(err).Msg("settings rejected, keeping current configuration")
		s.control.Metrics().Inc("settings.rejected")
		return
	}
	s.control.Metrics().Inc("settings.applied")
}

// Start binds the listener, starts housekeeping and the accept loop, and
// returns immediately.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return api.ErrAlreadyRunning
	}

	if s.cfg.SettingsPath != "" {
		w, err := control.NewWatcher(s.cfg.SettingsPath, s.control.Settings(), s.log)
		if err != nil {
			return fmt.Errorf("watch settings: %w", err)
		}
		w.SetOverrides(s.cfg.Overrides)
		s.watcher = w
	}

	ln, err := tcp.Listen(ctx, tcp.ListenerConfig{
		Addr:      s.cfg.ListenAddr,
		KeepAlive: s.cfg.KeepAlive,
		ReuseAddr: s.cfg.ReuseAddr,
		Logger:    s.log,
	})
	if err != nil {
		s.closeWatcher()
		return err
	}
	if err := s.manager.Start(); err != nil {
		ln.Close()
		s.closeWatcher()
		return err
	}
	s.listener = ln
	s.started = true
	s.serveDone = make(chan struct{})
	go func() {
		defer close(s.serveDone)
		err := ln.Serve(context.WithoutCancel(ctx), s.manager)
		s.mu.Lock()
		s.serveErr = err
		s.mu.Unlock()
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("telnet daemon started")
	return nil
}

// Run starts the server and blocks until ctx is done or Shutdown is called,
// then tears everything down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.shutdown:
	case <-s.serveDone:
	}
	if err := s.Shutdown(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

// Shutdown stops watching the settings file, stops accepting, then stops
// the manager, which closes every session. It is idempotent.
func (s *Server) Shutdown() error {
	var errs []error
	s.stopOnce.Do(func() {
		close(s.shutdown)
		s.mu.Lock()
		ln, done, w := s.listener, s.serveDone, s.watcher
		s.mu.Unlock()
		if w != nil {
			if err := w.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if ln != nil {
			if err := ln.Close(); err != nil {
				errs = append(errs, err)
			}
			<-done
		}
		s.manager.Stop()
		if c, ok := s.manager.Policy().(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.log.Info().Msg("telnet daemon stopped")
	})
	return errors.Join(errs...)
}

// closeWatcher undoes a watcher created by a failing Start. Callers hold mu.
func (s *Server) closeWatcher() {
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Manager exposes the connection manager.
func (s *Server) Manager() *manager.Manager { return s.manager }

// GetControl exposes settings, metrics and debug probes.
func (s *Server) GetControl() api.Control { return s.control }

var _ api.GracefulShutdown = (*Server)(nil)
