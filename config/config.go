// Package config implements Aurora's typed configuration surface and
// its runtime-tunable hot reload. Adapted from a generic string-keyed
// value store with per-key watcher callbacks into a flat typed struct:
// a radix-tree server has a fixed, well-known configuration surface,
// not an open-ended key/value bag, so the reflect-based Get*/Set
// machinery is replaced by plain struct fields; the "notify watchers
// on change" idea survives as the fsnotify-driven reload in reload.go.
//
// Startup loading order is Default(), then an optional ApplyFile(path)
// overlay (TOML, file.go), then ApplyEnv() — environment variables
// always win last since they're the layer an operator reaches for
// without touching a mounted file.
package config

import (
	"os"
	"strconv"
	"time"
)

// OverloadBehavior selects how Admission responds once connection
// hysteresis has tripped.
type OverloadBehavior int

const (
	Reject503 OverloadBehavior = iota
	ResetConnection
)

// HealthPaths names the three health endpoint routes.
type HealthPaths struct {
	Liveness  string
	Readiness string
	Startup   string
}

// Config is Aurora's full typed configuration surface.
type Config struct {
	Port int
	Host string

	// Workers is the Worker count; 0 means auto (max(1,
	// runtime.NumCPU()-1), which counts logical CPUs, not physical
	// cores). Structural: fixed for the process lifetime, never
	// hot-reloaded.
	Workers int

	MaxConnections           int
	ConnectionHighWater      float64
	ConnectionLowWater       float64
	MaxInFlightRequests      int
	OverloadBehavior         OverloadBehavior
	RetryAfterSeconds        int
	MaxRequestsPerConnection int

	ReadDeadline      time.Duration
	WriteDeadline     time.Duration
	KeepAliveDeadline time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int

	GracePeriod time.Duration

	HealthPaths HealthPaths

	ShedRatio       float64
	ShedBypassGlobs []string

	LogLevel string
	LogJSON  bool

	// ConfigReloadPaths are watched by reload.go for runtime-tunable
	// changes. Empty disables hot reload entirely.
	ConfigReloadPaths []string
}

// Default returns Aurora's baseline configuration.
func Default() *Config {
	return &Config{
		Port:                     8080,
		Host:                     "0.0.0.0",
		Workers:                  0,
		MaxConnections:           10000,
		ConnectionHighWater:      0.9,
		ConnectionLowWater:       0.7,
		MaxInFlightRequests:      2000,
		OverloadBehavior:         Reject503,
		RetryAfterSeconds:        1,
		MaxRequestsPerConnection: 1000,
		ReadDeadline:             10 * time.Second,
		WriteDeadline:            10 * time.Second,
		KeepAliveDeadline:        60 * time.Second,
		MaxHeaderBytes:           16 * 1024,
		MaxBodyBytes:             4 * 1024 * 1024,
		GracePeriod:              15 * time.Second,
		HealthPaths: HealthPaths{
			Liveness:  "/health/live",
			Readiness: "/health/ready",
			Startup:   "/health/startup",
		},
		ShedRatio:       0,
		ShedBypassGlobs: []string{"/health/*"},
		LogLevel:        "info",
		LogJSON:         false,
	}
}

// clone returns a copy safe for atomic swapping; slice fields are
// replaced wholesale on reload, never mutated in place.
func (c *Config) clone() *Config {
	cp := *c
	cp.ShedBypassGlobs = append([]string(nil), c.ShedBypassGlobs...)
	cp.ConfigReloadPaths = append([]string(nil), c.ConfigReloadPaths...)
	return &cp
}

// ApplyEnv overrides fields from environment variables, applied once
// at startup after Default() and any ApplyFile call — environment
// variables take precedence over whatever the config file set.
func ApplyEnv(c *Config) {
	if v := os.Getenv("AURORA_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("AURORA_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("AURORA_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("AURORA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
