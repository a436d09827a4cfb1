// Package timeouts holds the deadline classes for handler and worker I/O.
//
// Every Mongo call made from an HTTP handler or background worker runs
// under context.WithTimeout with one of these values, so a slow database
// degrades into 5xx responses instead of piled-up goroutines.
//
// Class guide:
//   - Ping: the /health connectivity probe
//   - Short: single-document loads (request by id, user by email)
//   - Medium: filtered request listings and payload edits
//   - Long: workflow transitions, which commit the CAS write and then run
//     publish/audit side effects in the same deadline
//   - Batch: publish-retry sweeps, index builds, location imports
package timeouts

import (
	"os"
	"sync"
	"time"
)

// Defaults applied when nothing overrides them.
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
	DefaultBatch  = 60 * time.Second
)

// Config carries one duration per class. Zero values mean "keep the
// current setting".
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Batch  time.Duration
}

var (
	mu      sync.RWMutex
	current = defaults()
)

func defaults() Config {
	return Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Medium: DefaultMedium,
		Long:   DefaultLong,
		Batch:  DefaultBatch,
	}
}

// Ping returns the deadline for the health probe.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short returns the deadline for single-document reads.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Medium returns the deadline for listings and simple writes.
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }

// Long returns the deadline for workflow transitions and their side
// effects.
func Long() time.Duration { return get(func(c Config) time.Duration { return c.Long }) }

// Batch returns the deadline for bulk work like retry sweeps and imports.
func Batch() time.Duration { return get(func(c Config) time.Duration { return c.Batch }) }

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(current)
}

// Configure overrides the classes set in cfg. Call during startup, before
// handlers are mounted; zero fields keep their current value.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		current.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		current.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		current.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		current.Long = cfg.Long
	}
	if cfg.Batch > 0 {
		current.Batch = cfg.Batch
	}
}

// Reset restores the defaults. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = defaults()
}

// ConfigureFromEnv applies overrides from TIMEOUT_PING, TIMEOUT_SHORT,
// TIMEOUT_MEDIUM, TIMEOUT_LONG and TIMEOUT_BATCH (Go duration syntax,
// e.g. "500ms", "2m"). Unset or unparsable variables keep the current
// value. Returns how many classes were overridden.
func ConfigureFromEnv() int {
	overrides := Config{}
	n := 0
	for _, v := range []struct {
		env string
		dst *time.Duration
	}{
		{"TIMEOUT_PING", &overrides.Ping},
		{"TIMEOUT_SHORT", &overrides.Short},
		{"TIMEOUT_MEDIUM", &overrides.Medium},
		{"TIMEOUT_LONG", &overrides.Long},
		{"TIMEOUT_BATCH", &overrides.Batch},
	} {
		raw := os.Getenv(v.env)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			continue
		}
		*v.dst = d
		n++
	}
	if n > 0 {
		Configure(overrides)
	}
	return n
}
