package config

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/pelletier/go-toml/v2"
)

// tunables is the TOML shape a reloadable config file provides — only
// the fields that are safe to change without rebinding the listener or
// restarting workers. Any other field present in the file is ignored;
// bind address, worker count, and routing are never affected by a
// reload. Shares its tag vocabulary with fileConfig's equivalent
// fields in file.go so the same on-disk file can serve as both the
// initial load and the reload source.
type tunables struct {
	MaxConnections           *int     `toml:"max_connections"`
	ConnectionHighWater      *float64 `toml:"connection_high_water"`
	ConnectionLowWater       *float64 `toml:"connection_low_water"`
	MaxInFlightRequests      *int     `toml:"max_in_flight_requests"`
	ShedRatio                *float64 `toml:"shed_ratio"`
	ShedBypassGlobs          []string `toml:"shed_bypass_globs"`
	ReadDeadlineSeconds      *float64 `toml:"read_deadline_seconds"`
	WriteDeadlineSeconds     *float64 `toml:"write_deadline_seconds"`
	KeepAliveDeadlineSeconds *float64 `toml:"keep_alive_deadline_seconds"`
	GracePeriodSeconds       *float64 `toml:"grace_period_seconds"`
}

// Live holds the current Config behind an atomic pointer so Workers
// and the Admission layer can read it without a lock on their hot
// path, while a Watcher goroutine swaps it wholesale on reload.
type Live struct {
	ptr atomic.Pointer[Config]
}

// NewLive wraps an initial Config for atomic hot-reload.
func NewLive(initial *Config) *Live {
	l := &Live{}
	l.ptr.Store(initial)
	return l
}

// Load returns the current Config. Safe to call from any goroutine,
// including a Worker's hot path.
func (l *Live) Load() *Config { return l.ptr.Load() }

// Watcher watches ConfigReloadPaths and applies runtime-tunable
// changes to a Live config. Routes, middleware, and the listener are
// never touched here — this only ever replaces the atomic pointer
// with a clone carrying updated tunables.
type Watcher struct {
	live *Live
	fsw  *fsnotify.Watcher
	log  hclog.Logger
	done chan struct{}
}

// NewWatcher starts watching every path in live.Load().ConfigReloadPaths.
// A nil/empty path list makes Watcher a no-op; Stop is still safe to
// call.
func NewWatcher(live *Live, log hclog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range live.Load().ConfigReloadPaths {
		if err := fsw.Add(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	w := &Watcher{live: live, fsw: fsw, log: log, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("config reload: read failed", "path", path, "error", err)
		return
	}
	var t tunables
	if err := toml.Unmarshal(data, &t); err != nil {
		w.log.Warn("config reload: parse failed", "path", path, "error", err)
		return
	}

	current := w.live.Load()
	next := current.clone()
	applyTunables(next, &t)
	w.live.ptr.Store(next)
	w.log.Info("config reloaded", "path", path)
}

func applyTunables(c *Config, t *tunables) {
	if t.MaxConnections != nil {
		c.MaxConnections = *t.MaxConnections
	}
	if t.ConnectionHighWater != nil {
		c.ConnectionHighWater = *t.ConnectionHighWater
	}
	if t.ConnectionLowWater != nil {
		c.ConnectionLowWater = *t.ConnectionLowWater
	}
	if t.MaxInFlightRequests != nil {
		c.MaxInFlightRequests = *t.MaxInFlightRequests
	}
	if t.ShedRatio != nil {
		c.ShedRatio = *t.ShedRatio
	}
	if t.ShedBypassGlobs != nil {
		c.ShedBypassGlobs = append([]string(nil), t.ShedBypassGlobs...)
	}
	if t.ReadDeadlineSeconds != nil {
		c.ReadDeadline = secondsToDuration(*t.ReadDeadlineSeconds)
	}
	if t.WriteDeadlineSeconds != nil {
		c.WriteDeadline = secondsToDuration(*t.WriteDeadlineSeconds)
	}
	if t.KeepAliveDeadlineSeconds != nil {
		c.KeepAliveDeadline = secondsToDuration(*t.KeepAliveDeadlineSeconds)
	}
	if t.GracePeriodSeconds != nil {
		c.GracePeriod = secondsToDuration(*t.GracePeriodSeconds)
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Stop halts the watcher goroutine and closes the underlying fsnotify
// watcher. Idempotent.
func (w *Watcher) Stop() {
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
	_ = w.fsw.Close()
}
