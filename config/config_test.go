package config

import "testing"

func TestDefaultConfigHasSaneBaselines(t *testing.T) {
	c := Default()
	if c.Port == 0 || c.MaxConnections == 0 || c.MaxRequestsPerConnection == 0 {
		t.Fatalf("expected non-zero baselines, got %+v", c)
	}
	if c.ConnectionLowWater >= c.ConnectionHighWater {
		t.Fatal("expected low water below high water")
	}
}

func TestApplyEnvOverridesPort(t *testing.T) {
	t.Setenv("AURORA_PORT", "9090")
	c := Default()
	ApplyEnv(c)
	if c.Port != 9090 {
		t.Fatalf("Port = %d, want 9090", c.Port)
	}
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	c := Default()
	cp := c.clone()
	cp.ShedBypassGlobs[0] = "/mutated"
	if c.ShedBypassGlobs[0] == "/mutated" {
		t.Fatal("expected clone to deep-copy slice fields")
	}
}
