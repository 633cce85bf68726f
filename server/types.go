// File: server/types.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-telnetd/adapters"
	"github.com/momentics/hioload-telnetd/control"
	"github.com/momentics/hioload-telnetd/manager"
	"github.com/momentics/hioload-telnetd/transport/tcp"
)

// Config holds the listener-level parameters. Supervisor tunables live in
// the settings store under Name.
type Config struct {
	Name         string        // listener name, prefix of its settings keys
	ListenAddr   string        // TCP bind address, e.g. ":2323"
	KeepAlive    time.Duration // TCP keepalive period; negative disables it
	ReuseAddr    bool          // set SO_REUSEADDR/SO_REUSEPORT on the socket
	SettingsPath string        // TOML file watched for changes; empty disables reload

	// Overrides win over SettingsPath on every reload.
	Overrides map[string]string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:       "std",
		ListenAddr: ":2323",
		KeepAlive:  30 * time.Second,
		ReuseAddr:  true,
	}
}

// DefaultSettings returns the supervisor keys for listener name with the
// daemon defaults filled in.
func DefaultSettings(name string) map[string]string {
	return map[string]string{
		name + "." + manager.KeyMaxConnections:       "25",
		name + "." + manager.KeyWarningTimeout:       "3600000",
		name + "." + manager.KeyDisconnectTimeout:    "60000",
		name + "." + manager.KeyHousekeepingInterval: "1000",
		name + "." + manager.KeyConnectionFilter:     "none",
		name + "." + manager.KeyLoginShell:           "simple",
		name + "." + manager.KeyInputMode:            "character",
	}
}

// Server composes the TCP listener, the connection manager, the control
// surface and the settings watcher of one telnet listener.
type Server struct {
	cfg      *Config
	log      zerolog.Logger
	control  *adapters.ControlAdapter
	manager  *manager.Manager
	watcher  *control.Watcher
	listener *tcp.Listener

	mu        sync.Mutex
	started   bool
	serveDone chan struct{}
	serveErr  error
	shutdown  chan struct{}
	stopOnce  sync.Once
}
