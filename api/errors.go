// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by the supervisor, policies and transports.

package api

import "errors"

// Common errors used across the library.
var (
	ErrAlreadyRunning   = errors.New("already running")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnresolvableAddr = errors.New("remote address cannot be resolved")
	ErrListenerClosed   = errors.New("listener is closed")
)
