// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe settings store with typed accessors, prefix scoping and
// reload propagation.

package control

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SettingError reports a setting that is missing or cannot be parsed.
type SettingError struct {
	Key string
	Err error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("setting %q: %v", e.Key, e.Err)
}

func (e *SettingError) Unwrap() error { return e.Err }

// ErrMissingSetting is wrapped by SettingError for absent required keys.
var ErrMissingSetting = errors.New("missing value")

// Settings is a string key/value map with atomic snapshot and listener support.
// Keys are dotted paths such as "std.maxcon".
type Settings struct {
	mu        sync.RWMutex
	values    map[string]string
	listeners []func()
}

// NewSettings returns a store seeded with a copy of values.
func NewSettings(values map[string]string) *Settings {
	s := &Settings{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the raw value for key.
func (s *Settings) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// String returns the trimmed value for key or "" when absent.
func (s *Settings) String(key string) string {
	v, _ := s.Get(key)
	return strings.TrimSpace(v)
}

// Int parses key as a base-10 integer. Absent keys are an error.
func (s *Settings) Int(key string) (int, error) {
	v, ok := s.Get(key)
	if !ok {
		return 0, &SettingError{Key: key, Err: ErrMissingSetting}
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &SettingError{Key: key, Err: err}
	}
	return n, nil
}

// IntOr parses key, returning def when the key is absent.
func (s *Settings) IntOr(key string, def int) (int, error) {
	if _, ok := s.Get(key); !ok {
		return def, nil
	}
	return s.Int(key)
}

// FloatOr parses key as a float, returning def when the key is absent.
func (s *Settings) FloatOr(key string, def float64) (float64, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, &SettingError{Key: key, Err: err}
	}
	return f, nil
}

// Millis parses key as an integer number of milliseconds.
func (s *Settings) Millis(key string) (time.Duration, error) {
	n, err := s.Int(key)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

// List splits a comma separated value, dropping empty items.
func (s *Settings) List(key string) []string {
	raw := s.String(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Scope returns a detached copy holding the keys under prefix with the
// prefix and its trailing dot removed.
func (s *Settings) Scope(prefix string) *Settings {
	prefix = strings.TrimSuffix(prefix, ".") + "."
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &Settings{values: make(map[string]string)}
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) {
			out.values[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// Keys returns all keys in sorted order.
func (s *Settings) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetSnapshot returns a copy of all values.
func (s *Settings) GetSnapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]string, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

// Set assigns a single value without notifying listeners.
func (s *Settings) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// SetConfig merges new values and dispatches reload listeners.
func (s *Settings) SetConfig(values map[string]string) {
	s.mu.Lock()
	for k, v := range values {
		s.values[k] = v
	}
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	dispatchReload(listeners)
}

// Replace swaps the whole value set and dispatches reload listeners.
func (s *Settings) Replace(values map[string]string) {
	s.mu.Lock()
	s.values = make(map[string]string, len(values))
	for k, v := range values {
		s.values[k] = v
	}
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	dispatchReload(listeners)
}

// OnReload registers a listener hook called on changes.
func (s *Settings) OnReload(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// dispatchReload invokes listeners synchronously, outside the lock.
func dispatchReload(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}
