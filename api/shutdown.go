// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by components that own goroutines or
// sessions and must release them before the process exits.
type GracefulShutdown interface {
	// Shutdown stops the component and blocks until its work has finished.
	Shutdown() error
}
