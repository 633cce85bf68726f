// File: manager/errors.go
// Package manager
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package manager

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginShellRequired is returned when no login shell is configured.
	ErrLoginShellRequired = errors.New("login shell must be specified")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("manager stopped")
	// ErrNilFactory is returned when no session factory is supplied.
	ErrNilFactory = errors.New("session factory is required")
)

// ConfigError wraps any failure while building a manager from settings.
type ConfigError struct {
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("create connection manager %q: %v", e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
