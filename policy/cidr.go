// File: policy/cidr.go
// Package policy
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package policy

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/momentics/hioload-telnetd/control"
)

// CIDR admits addresses by prefix lists. Settings:
//
//	allow  comma separated addresses or prefixes; empty admits everyone
//	deny   comma separated addresses or prefixes; deny wins over allow
type CIDR struct {
	allow []netip.Prefix
	deny  []netip.Prefix
}

// Initialize implements api.AdmissionPolicy.
func (c *CIDR) Initialize(settings *control.Settings) error {
	allow, err := parsePrefixes(settings.List("allow"))
	if err != nil {
		return &control.SettingError{Key: "allow", Err: err}
	}
	deny, err := parsePrefixes(settings.List("deny"))
	if err != nil {
		return &control.SettingError{Key: "deny", Err: err}
	}
	c.allow, c.deny = allow, deny
	return nil
}

// IsAllowed implements api.AdmissionPolicy.
func (c *CIDR) IsAllowed(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range c.deny {
		if p.Contains(addr) {
			return false
		}
	}
	if len(c.allow) == 0 {
		return true
	}
	for _, p := range c.allow {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parsePrefixes(items []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(items))
	for _, item := range items {
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", item, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}
