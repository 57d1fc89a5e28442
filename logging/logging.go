// Package logging provides the structured logger Aurora's components
// are constructed with (C13). It is a thin constructor around
// hashicorp/go-hclog — the library choice mined from nabbar-golib's
// own hclog bridge (logger/hashicorp) — rather than a bespoke
// interface, so every component simply takes an hclog.Logger.
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// Options configures the root logger.
type Options struct {
	Name  string
	Level string // "trace","debug","info","warn","error"
	JSON  bool
}

// New constructs the root hclog.Logger every Aurora component is
// handed a Named() child of. JSON output is used in production
// deployments; the human-readable format is left for local
// development, matching hclog's own default split.
func New(opts Options) hclog.Logger {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: opts.JSON,
	})
}

// Discard returns a logger that drops everything, used by tests and
// by components constructed without an explicit logger.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}
