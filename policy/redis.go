// File: policy/redis.go
// Package policy
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package policy

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/momentics/hioload-telnetd/control"
)

// RedisConfig holds connection defaults for the redis policy. Defaults can
// be loaded via envdecode and are overridden by settings.
type RedisConfig struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// Key of the Redis set holding denied addresses. ENV: TELNETD_DENY_KEY
	Key string `env:"TELNETD_DENY_KEY,default=telnetd:deny"`
	// Timeout bounds every lookup. ENV: TELNETD_REDIS_TIMEOUT
	Timeout time.Duration `env:"TELNETD_REDIS_TIMEOUT,default=250ms"`
}

// RedisConfigFromEnv decodes RedisConfig from the environment.
func RedisConfigFromEnv() (RedisConfig, error) {
	var cfg RedisConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, fmt.Errorf("decode redis env: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Key == "" {
		cfg.Key = "telnetd:deny"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 250 * time.Millisecond
	}
	return cfg, nil
}

// Redis denies addresses that are members of a Redis set, so several daemons
// can share one block list. Settings (override the environment):
//
//	addr        Redis address
//	key         set key
//	timeout_ms  per-lookup timeout
//
// Lookup failures deny the connection.
type Redis struct {
	cfg      RedisConfig
	client   *redis.Client
	failures atomic.Int64
}

// Initialize implements api.AdmissionPolicy. It pings the server.
func (r *Redis) Initialize(settings *control.Settings) error {
	cfg, err := RedisConfigFromEnv()
	if err != nil {
		return err
	}
	if v := settings.String("addr"); v != "" {
		cfg.Addr = v
	}
	if v := settings.String("key"); v != "" {
		cfg.Key = v
	}
	if _, ok := settings.Get("timeout_ms"); ok {
		d, err := settings.Millis("timeout_ms")
		if err != nil {
			return err
		}
		cfg.Timeout = d
	}
	cl := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		MaxRetries:   -1,
	})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := cl.Ping(ctx).Err(); err != nil {
		cl.Close()
		return fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	r.cfg = cfg
	r.client = cl
	return nil
}

// Config returns the effective configuration.
func (r *Redis) Config() RedisConfig { return r.cfg }

// IsAllowed implements api.AdmissionPolicy.
func (r *Redis) IsAllowed(addr netip.Addr) bool {
	if r.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()
	denied, err := r.client.SIsMember(ctx, r.cfg.Key, addr.Unmap().String()).Result()
	if err != nil {
		r.failures.Add(1)
		return false
	}
	return !denied
}

// Failures returns the number of lookups that failed and were denied.
func (r *Redis) Failures() int64 { return r.failures.Load() }

// Close releases the Redis client.
func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
