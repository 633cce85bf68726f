// File: api/policy.go
// Package api defines the admission policy contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"net/netip"

	"github.com/momentics/hioload-telnetd/control"
)

// AdmissionPolicy decides whether a remote address may open a session.
type AdmissionPolicy interface {
	// Initialize configures the policy from its scoped settings.
	Initialize(settings *control.Settings) error
	// IsAllowed reports whether addr may be admitted.
	IsAllowed(addr netip.Addr) bool
}
