// File: server/options.go
// Package server defines functional options for the Server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-telnetd/manager"
)

// ServerOption customizes server initialization.
type ServerOption func(*options)

type options struct {
	log        zerolog.Logger
	managerOps []manager.Option
}

// WithLogger sets the log sink shared by every component.
func WithLogger(log zerolog.Logger) ServerOption {
	return func(o *options) {
		o.log = log
	}
}

// WithManagerOptions passes extra options to the connection manager.
func WithManagerOptions(opts ...manager.Option) ServerOption {
	return func(o *options) {
		o.managerOps = append(o.managerOps, opts...)
	}
}
