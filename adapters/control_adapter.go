// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control interface using control package primitives.

package adapters

import (
	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/control"
)

// ControlAdapter joins the daemon's settings, metrics and debug probes
// behind api.Control.
type ControlAdapter struct {
	config  *control.Settings
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

var (
	_ api.Control = (*ControlAdapter)(nil)
	_ api.Debug   = (*control.DebugProbes)(nil)
)

// NewControlAdapter wraps settings and metrics. Nil arguments get fresh
// empty stores.
func NewControlAdapter(settings *control.Settings, metrics *control.MetricsRegistry) *ControlAdapter {
	if settings == nil {
		settings = control.NewSettings(nil)
	}
	if metrics == nil {
		metrics = control.NewMetricsRegistry()
	}
	return &ControlAdapter{
		config:  settings,
		metrics: metrics,
		debug:   control.NewDebugProbes(),
	}
}

func (c *ControlAdapter) GetConfig() map[string]string {
	return c.config.GetSnapshot()
}

// SetConfig merges cfg into the settings and fires reload hooks.
func (c *ControlAdapter) SetConfig(cfg map[string]string) error {
	c.config.SetConfig(cfg)
	return nil
}

// Stats returns metrics plus probe output under the "debug." prefix.
func (c *ControlAdapter) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any, len(stats)+len(debugStats))
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) OnReload(fn func()) {
	c.config.OnReload(fn)
}

func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

// Settings returns the wrapped store.
func (c *ControlAdapter) Settings() *control.Settings { return c.config }

// Debug returns the probe registry.
func (c *ControlAdapter) Debug() api.Debug { return c.debug }

// Metrics returns the wrapped registry.
func (c *ControlAdapter) Metrics() *control.MetricsRegistry { return c.metrics }
