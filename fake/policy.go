// Package fake
// Author: momentics <momentics@gmail.com>
//
// Static admission policy.

package fake

import (
	"net/netip"
	"sync"

	"github.com/momentics/hioload-telnetd/control"
)

// Policy denies a fixed set of addresses and records every decision.
type Policy struct {
	mu      sync.Mutex
	denied  map[netip.Addr]bool
	asked   []netip.Addr
	initErr error
	inited  *control.Settings
	closed  int
}

// NewPolicy denies every listed address.
func NewPolicy(deny ...string) *Policy {
	p := &Policy{denied: make(map[netip.Addr]bool)}
	for _, d := range deny {
		p.denied[netip.MustParseAddr(d)] = true
	}
	return p
}

// FailInitialize makes Initialize return err.
func (p *Policy) FailInitialize(err error) *Policy {
	p.initErr = err
	return p
}

// Initialize implements api.AdmissionPolicy.
func (p *Policy) Initialize(settings *control.Settings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inited = settings
	return p.initErr
}

// IsAllowed implements api.AdmissionPolicy.
func (p *Policy) IsAllowed(addr netip.Addr) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, addr)
	return !p.denied[addr]
}

// Asked returns every address the policy was consulted for.
func (p *Policy) Asked() []netip.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]netip.Addr(nil), p.asked...)
}

// Settings returns the settings passed to Initialize.
func (p *Policy) Settings() *control.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inited
}

// Close records the call; the manager closes policies it replaces.
func (p *Policy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

// Closed returns how many times Close was called.
func (p *Policy) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
