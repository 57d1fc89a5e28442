package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the TOML shape an optional config file provides at
// startup, covering every Config field including the structural ones
// (bind address, worker count) that a hot reload is never allowed to
// touch — unlike tunables in reload.go, which exists specifically to
// exclude those. Pointer/nil-slice fields left out of the file keep
// whatever Default() already set.
type fileConfig struct {
	Port    *int    `toml:"port"`
	Host    *string `toml:"host"`
	Workers *int    `toml:"workers"`

	MaxConnections           *int     `toml:"max_connections"`
	ConnectionHighWater      *float64 `toml:"connection_high_water"`
	ConnectionLowWater       *float64 `toml:"connection_low_water"`
	MaxInFlightRequests      *int     `toml:"max_in_flight_requests"`
	OverloadBehavior         *string  `toml:"overload_behavior"`
	RetryAfterSeconds        *int     `toml:"retry_after_seconds"`
	MaxRequestsPerConnection *int     `toml:"max_requests_per_connection"`

	ReadDeadlineSeconds      *float64 `toml:"read_deadline_seconds"`
	WriteDeadlineSeconds     *float64 `toml:"write_deadline_seconds"`
	KeepAliveDeadlineSeconds *float64 `toml:"keep_alive_deadline_seconds"`

	MaxHeaderBytes *int `toml:"max_header_bytes"`
	MaxBodyBytes   *int `toml:"max_body_bytes"`

	GracePeriodSeconds *float64 `toml:"grace_period_seconds"`

	HealthPaths *struct {
		Liveness  *string `toml:"liveness"`
		Readiness *string `toml:"readiness"`
		Startup   *string `toml:"startup"`
	} `toml:"health_paths"`

	ShedRatio       *float64 `toml:"shed_ratio"`
	ShedBypassGlobs []string `toml:"shed_bypass_globs"`

	LogLevel *string `toml:"log_level"`
	LogJSON  *bool   `toml:"log_json"`

	ConfigReloadPaths []string `toml:"config_reload_paths"`
}

// ApplyFile overlays the TOML file at path onto c in place. It is meant
// to run once at startup, between Default() and ApplyEnv(), so that
// environment variables always have the last word. A missing path is
// not an error — file-based configuration is optional — but a present,
// malformed file is.
func ApplyFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return err
	}
	applyFileConfig(c, &f)
	return nil
}

func applyFileConfig(c *Config, f *fileConfig) {
	if f.Port != nil {
		c.Port = *f.Port
	}
	if f.Host != nil {
		c.Host = *f.Host
	}
	if f.Workers != nil {
		c.Workers = *f.Workers
	}
	if f.MaxConnections != nil {
		c.MaxConnections = *f.MaxConnections
	}
	if f.ConnectionHighWater != nil {
		c.ConnectionHighWater = *f.ConnectionHighWater
	}
	if f.ConnectionLowWater != nil {
		c.ConnectionLowWater = *f.ConnectionLowWater
	}
	if f.MaxInFlightRequests != nil {
		c.MaxInFlightRequests = *f.MaxInFlightRequests
	}
	if f.OverloadBehavior != nil {
		if *f.OverloadBehavior == "reset" {
			c.OverloadBehavior = ResetConnection
		} else {
			c.OverloadBehavior = Reject503
		}
	}
	if f.RetryAfterSeconds != nil {
		c.RetryAfterSeconds = *f.RetryAfterSeconds
	}
	if f.MaxRequestsPerConnection != nil {
		c.MaxRequestsPerConnection = *f.MaxRequestsPerConnection
	}
	if f.ReadDeadlineSeconds != nil {
		c.ReadDeadline = secondsToDuration(*f.ReadDeadlineSeconds)
	}
	if f.WriteDeadlineSeconds != nil {
		c.WriteDeadline = secondsToDuration(*f.WriteDeadlineSeconds)
	}
	if f.KeepAliveDeadlineSeconds != nil {
		c.KeepAliveDeadline = secondsToDuration(*f.KeepAliveDeadlineSeconds)
	}
	if f.MaxHeaderBytes != nil {
		c.MaxHeaderBytes = *f.MaxHeaderBytes
	}
	if f.MaxBodyBytes != nil {
		c.MaxBodyBytes = *f.MaxBodyBytes
	}
	if f.GracePeriodSeconds != nil {
		c.GracePeriod = secondsToDuration(*f.GracePeriodSeconds)
	}
	if hp := f.HealthPaths; hp != nil {
		if hp.Liveness != nil {
			c.HealthPaths.Liveness = *hp.Liveness
		}
		if hp.Readiness != nil {
			c.HealthPaths.Readiness = *hp.Readiness
		}
		if hp.Startup != nil {
			c.HealthPaths.Startup = *hp.Startup
		}
	}
	if f.ShedRatio != nil {
		c.ShedRatio = *f.ShedRatio
	}
	if f.ShedBypassGlobs != nil {
		c.ShedBypassGlobs = append([]string(nil), f.ShedBypassGlobs...)
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.LogJSON != nil {
		c.LogJSON = *f.LogJSON
	}
	if f.ConfigReloadPaths != nil {
		c.ConfigReloadPaths = append([]string(nil), f.ConfigReloadPaths...)
	}
}
