package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
)

func TestWatcherReloadsRuntimeTunablesOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	initial := Default()
	initial.ConfigReloadPaths = []string{path}
	originalMaxConns := initial.MaxConnections

	live := NewLive(initial)
	w, err := NewWatcher(live, hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	newMax := originalMaxConns + 500
	if err := os.WriteFile(path, []byte("max_connections = "+itoa(newMax)+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if live.Load().MaxConnections == newMax {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if live.Load().MaxConnections != newMax {
		t.Fatalf("MaxConnections = %d, want %d", live.Load().MaxConnections, newMax)
	}

	if live.Load().Port != initial.Port {
		t.Fatal("expected Port (structural, not a tunable) to remain unchanged across reload")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
