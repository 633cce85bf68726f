// File: api/control.go
// Package api defines Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control exposes runtime settings, metrics and debug probes of a daemon.
type Control interface {
	GetConfig() map[string]string
	SetConfig(cfg map[string]string) error
	Stats() map[string]any
	OnReload(fn func())
	RegisterDebugProbe(name string, fn func() any)
}
