// File: policy/registry.go
// Package policy
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime registry mapping policy identifiers to constructors.

package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/momentics/hioload-telnetd/api"
	"github.com/momentics/hioload-telnetd/control"
)

// NoneID disables address-based admission.
const NoneID = "none"

// ErrUnknownPolicy is returned by Resolve for identifiers nobody registered.
var ErrUnknownPolicy = errors.New("unknown admission policy")

// Factory constructs an uninitialized policy.
type Factory func() api.AdmissionPolicy

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a policy available under id. Identifiers are case
// insensitive; registering an id twice replaces the earlier factory.
func Register(id string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[normalize(id)] = f
}

// Lookup returns the factory registered for id.
func Lookup(id string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[normalize(id)]
	return f, ok
}

// Registered lists the known identifiers in sorted order.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsNone reports whether id selects no policy.
func IsNone(id string) bool {
	id = normalize(id)
	return id == "" || id == NoneID
}

// Resolve builds and initializes the policy registered under id. It returns
// a nil policy for "" and "none".
func Resolve(id string, settings *control.Settings) (api.AdmissionPolicy, error) {
	if IsNone(id) {
		return nil, nil
	}
	f, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, id)
	}
	p := f()
	if settings == nil {
		settings = control.NewSettings(nil)
	}
	if err := p.Initialize(settings); err != nil {
		return nil, fmt.Errorf("initialize policy %q: %w", id, err)
	}
	return p, nil
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func init() {
	Register("cidr", func() api.AdmissionPolicy { return &CIDR{} })
	Register("ratelimit", func() api.AdmissionPolicy { return &RateLimit{} })
	Register("redis", func() api.AdmissionPolicy { return &Redis{} })
}
