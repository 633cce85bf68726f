// File: manager/config.go
// Package manager
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package manager

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/control"
	"github.com/momentics/hioload-telnetd/policy"
)

// Settings keys, relative to the listener name.
const (
	KeyMaxConnections       = "maxcon"
	KeyWarningTimeout       = "time_to_warning"
	KeyDisconnectTimeout    = "time_to_timedout"
	KeyHousekeepingInterval = "housekeepinginterval"
	KeyConnectionFilter     = "connectionfilter"
	KeyLoginShell           = "loginshell"
	KeyInputMode            = "inputmode"
)

// Config holds the supervisor tunables.
type Config struct {
	MaxConnections       int           // admissions beyond this are dropped
	WarningTimeout       time.Duration // idle time before IDLE is delivered
	DisconnectTimeout    time.Duration // further idle time before TIMEDOUT
	HousekeepingInterval time.Duration // pause between housekeeping cycles
	LoginShell           string        // shell name stored in every session's metadata
	LineMode             bool          // line input mode; false means character mode
	Policy               api.AdmissionPolicy
}

// DefaultConfig returns the daemon defaults. LoginShell is left empty on
// purpose: it has no sensible default and must be set.
func DefaultConfig() Config {
	return Config{
		MaxConnections:       25,
		WarningTimeout:       time.Hour,
		DisconnectTimeout:    time.Minute,
		HousekeepingInterval: time.Second,
	}
}

// Validate checks the tunables.
func (c Config) Validate() error {
	if strings.TrimSpace(c.LoginShell) == "" {
		return ErrLoginShellRequired
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("%w: max connections %d", api.ErrInvalidArgument, c.MaxConnections)
	}
	if c.WarningTimeout < 0 || c.DisconnectTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", api.ErrInvalidArgument)
	}
	if c.HousekeepingInterval <= 0 {
		return fmt.Errorf("%w: housekeeping interval must be positive", api.ErrInvalidArgument)
	}
	return nil
}

// parsed is a Config read from settings plus facts worth logging.
type parsed struct {
	Config
	policyID        string
	policyScope     map[string]string
	policyReused    bool
	inputModeAbsent bool
}

// policySource records which settings built the current policy.
type policySource struct {
	id     string
	scope  map[string]string
	policy api.AdmissionPolicy
}

// matches reports whether id and scope would build the same policy.
func (ps *policySource) matches(id string, scope map[string]string) bool {
	return ps != nil && strings.EqualFold(strings.TrimSpace(ps.id), strings.TrimSpace(id)) &&
		maps.Equal(ps.scope, scope)
}

// parseSettings reads the listener's keys from s. Numeric keys are parsed
// first, then the login shell, and the policy is resolved last so a broken
// file never initializes a policy. When cur was built from the same id and
// policy keys it is reused instead of resolving a fresh instance.
func parseSettings(name string, s *control.Settings, cur *policySource) (parsed, error) {
	key := func(k string) string { return name + "." + k }
	var p parsed
	var err error

	if p.MaxConnections, err = s.Int(key(KeyMaxConnections)); err != nil {
		return p, err
	}
	if p.WarningTimeout, err = s.Millis(key(KeyWarningTimeout)); err != nil {
		return p, err
	}
	if p.DisconnectTimeout, err = s.Millis(key(KeyDisconnectTimeout)); err != nil {
		return p, err
	}
	if p.HousekeepingInterval, err = s.Millis(key(KeyHousekeepingInterval)); err != nil {
		return p, err
	}

	p.LoginShell = s.String(key(KeyLoginShell))
	if p.LoginShell == "" {
		return p, ErrLoginShellRequired
	}

	switch mode := s.String(key(KeyInputMode)); {
	case mode == "":
		p.inputModeAbsent = true
	case strings.EqualFold(mode, "line"):
		p.LineMode = true
	}

	// A TOML file cannot hold both connectionfilter and a connectionfilter
	// table, so the table form names the policy with "id".
	p.policyID = s.String(key(KeyConnectionFilter))
	if p.policyID == "" {
		p.policyID = s.String(key(KeyConnectionFilter) + ".id")
	}
	scope := s.Scope(key(KeyConnectionFilter))
	p.policyScope = scope.GetSnapshot()
	if cur.matches(p.policyID, p.policyScope) {
		p.Policy, p.policyReused = cur.policy, true
		return p, nil
	}
	if p.Policy, err = policy.Resolve(p.policyID, scope); err != nil {
		return p, err
	}
	return p, nil
}

// ConfigFromSettings builds a Config from the keys under name. Every
// failure is returned as a *ConfigError.
func ConfigFromSettings(name string, s *control.Settings) (Config, error) {
	p, err := parseSettings(name, s, nil)
	if err != nil {
		return Config{}, &ConfigError{Name: name, Err: err}
	}
	return p.Config, nil
}

// FromSettings builds a Manager named name from the keys under name.
func FromSettings(name string, s *control.Settings, factory SessionFactory, opts ...Option) (*Manager, error) {
	p, err := parseSettings(name, s, nil)
	if err != nil {
		return nil, &ConfigError{Name: name, Err: err}
	}
	m, err := New(p.Config, factory, append([]Option{WithName(name)}, opts...)...)
	if err != nil {
		closePolicy(p.Policy)
		return nil, &ConfigError{Name: name, Err: err}
	}
	m.policySrc = &policySource{id: p.policyID, scope: p.policyScope, policy: p.Policy}
	if p.inputModeAbsent {
		m.log.Info().Msg("input mode not specified, using character input as default")
	}
	m.log.Debug().Str("policy", p.policyID).Int("maxcon", p.MaxConnections).Msg("configured from settings")
	return m, nil
}
