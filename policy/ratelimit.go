// File: policy/ratelimit.go
// Package policy
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package policy

import (
	"errors"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/momentics/hioload-telnetd/control"
)

const (
	defaultRate       = 1.0
	defaultBurst      = 5
	defaultMaxTracked = 4096
)

// RateLimit admits at most `rate` connections per second per address with
// bursts of `burst`. Settings:
//
//	rate         connection attempts per second per address (float, default 1)
//	burst        bucket size (int, default 5)
//	max_tracked  addresses kept before idle buckets are pruned (default 4096)
type RateLimit struct {
	mu         sync.Mutex
	limit      rate.Limit
	burst      int
	maxTracked int
	limiters   map[netip.Addr]*addrLimiter
	now        func() time.Time
}

type addrLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Initialize implements api.AdmissionPolicy.
func (r *RateLimit) Initialize(settings *control.Settings) error {
	perSec, err := settings.FloatOr("rate", defaultRate)
	if err != nil {
		return err
	}
	if perSec <= 0 {
		return &control.SettingError{Key: "rate", Err: errors.New("must be positive")}
	}
	burst, err := settings.IntOr("burst", defaultBurst)
	if err != nil {
		return err
	}
	if burst < 1 {
		return &control.SettingError{Key: "burst", Err: errors.New("must be at least 1")}
	}
	maxTracked, err := settings.IntOr("max_tracked", defaultMaxTracked)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = rate.Limit(perSec)
	r.burst = burst
	r.maxTracked = maxTracked
	r.limiters = make(map[netip.Addr]*addrLimiter)
	if r.now == nil {
		r.now = time.Now
	}
	return nil
}

// IsAllowed implements api.AdmissionPolicy. Every call consumes a token.
func (r *RateLimit) IsAllowed(addr netip.Addr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	addr = addr.Unmap()
	al, ok := r.limiters[addr]
	if !ok {
		if r.maxTracked > 0 && len(r.limiters) >= r.maxTracked {
			r.pruneLocked(now)
		}
		al = &addrLimiter{lim: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[addr] = al
	}
	al.lastSeen = now
	return al.lim.AllowN(now, 1)
}

// Tracked returns the number of addresses with a live bucket.
func (r *RateLimit) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// pruneLocked drops buckets that have had time to refill completely.
func (r *RateLimit) pruneLocked(now time.Time) {
	refill := time.Duration(float64(r.burst) / float64(r.limit) * float64(time.Second))
	for a, al := range r.limiters {
		if now.Sub(al.lastSeen) >= refill {
			delete(r.limiters, a)
		}
	}
}
