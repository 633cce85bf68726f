// File: manager/admission.go
// Package manager
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package manager

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/momentics/hioload-telnetd/api"
)

// Admit validates conn and, when it passes policy and capacity, registers a
// new session for it and starts that session. Rejections are normal
// outcomes: conn is closed, a counter is raised and nothing is returned.
//
// The capacity check and the insert form one atomic region, so concurrent
// admissions never push the active count past MaxConnections.
func (m *Manager) Admit(conn net.Conn) {
	if conn == nil {
		return
	}
	// Stop waits for the write lock, so an admission that got past this
	// point starts its session before Stop closes it.
	m.admitMu.RLock()
	defer m.admitMu.RUnlock()
	if m.stopping.Load() {
		conn.Close()
		m.metrics.Inc("admission.rejected.stopping")
		return
	}

	addr, err := remoteAddr(conn.RemoteAddr())
	if err != nil {
		m.log.Warn().Err(err).Msg("cannot resolve remote address")
		conn.Close()
		m.metrics.Inc("admission.rejected.address")
		return
	}
	log := m.log.With().Str("remote", addr.String()).Logger()

	cfg := m.Config()
	if cfg.Policy != nil && !cfg.Policy.IsAllowed(addr) {
		log.Info().Msg("active filter blocked incoming connection")
		conn.Close()
		m.metrics.Inc("admission.rejected.policy")
		return
	}

	if !m.registry.Reserve(cfg.MaxConnections) {
		log.Warn().Int("maxcon", cfg.MaxConnections).Msg("connection limit reached, dropping connection")
		conn.Close()
		m.metrics.Inc("admission.rejected.capacity")
		return
	}

	md := api.NewMetadata(conn.RemoteAddr(), addr, cfg.LoginShell, cfg.LineMode, m.now())
	s, err := m.build(conn, md)
	if err != nil {
		m.registry.Release()
		log.Error().Err(err).Msg("session construction failed")
		conn.Close()
		m.metrics.Inc("admission.failed")
		return
	}

	n, ok := m.registry.Commit(s)
	if !ok {
		if cerr := s.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("session", s.ID()).Msg("close after late admission")
		}
		m.metrics.Inc("admission.rejected.stopping")
		return
	}
	log.Info().Str("session", s.ID()).Msgf("connection #%d made", n)
	m.metrics.Set("sessions.active", int64(n))
	m.metrics.Inc("admission.accepted")
	s.Start()
}

// build runs the factory. A panic or a nil session is reported as an error
// so the caller releases the reservation.
func (m *Manager) build(conn net.Conn, md *api.Metadata) (s api.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("session factory panicked: %v", r)
		}
	}()
	s, err = m.factory(conn, md, m)
	if err == nil && s == nil {
		err = fmt.Errorf("%w: factory returned no session", api.ErrInvalidArgument)
	}
	return s, err
}

// remoteAddr extracts the peer IP from a transport address. IPv4-mapped
// IPv6 addresses are unmapped so policies see one form.
func remoteAddr(a net.Addr) (netip.Addr, error) {
	if a == nil {
		return netip.Addr{}, api.ErrUnresolvableAddr
	}
	switch v := a.(type) {
	case *net.TCPAddr:
		if ip, ok := netip.AddrFromSlice(v.IP); ok {
			return ip.Unmap(), nil
		}
	case *net.UDPAddr:
		if ip, ok := netip.AddrFromSlice(v.IP); ok {
			return ip.Unmap(), nil
		}
	default:
		if ap, err := netip.ParseAddrPort(a.String()); err == nil {
			return ap.Addr().Unmap(), nil
		}
		if ip, err := netip.ParseAddr(a.String()); err == nil {
			return ip.Unmap(), nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s", api.ErrUnresolvableAddr, a.String())
}
