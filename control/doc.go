// Package control
// Author: momentics <momentics@gmail.com>
//
// Settings, hot-reload, runtime metrics and debug introspection for the
// telnet daemon.
//
// Provides concurrent-safe state handling primitives including:
//   - A dotted-key settings store with typed accessors and reload hooks
//   - A TOML loader and a file watcher that keeps the store current
//   - Metrics counters and gauges
//   - Debug probe registration and state export
package control
