package admission

import (
	"testing"
	"time"
)

func newTestPolicy(maxConns int, highWater, lowWater float64) *Policy {
	return New(&Counters{}, &Flags{}, maxConns, highWater, lowWater, 100, 0, nil)
}

func TestAdmitConnectionRejectsAtHardCap(t *testing.T) {
	p := newTestPolicy(2, 0.9, 0.5)
	if !p.AdmitConnection() || !p.AdmitConnection() {
		t.Fatal("expected first two connections admitted")
	}
	if p.AdmitConnection() {
		t.Fatal("expected third connection rejected at hard cap")
	}
	if p.counters.RejectedTotal.Load() != 1 {
		t.Fatalf("RejectedTotal = %d, want 1", p.counters.RejectedTotal.Load())
	}
}

func TestAdmitConnectionHysteresis(t *testing.T) {
	p := newTestPolicy(10, 0.5, 0.2) // high=5, low=2
	for i := 0; i < 5; i++ {
		if !p.AdmitConnection() {
			t.Fatalf("expected connection %d admitted before high water", i)
		}
	}
	if p.AdmitConnection() {
		t.Fatal("expected rejection once at/above high water")
	}
	if !p.Overloaded() {
		t.Fatal("expected overloaded latch set")
	}

	for i := 0; i < 4; i++ {
		p.ReleaseConnection()
	}
	// current_connections now 1, below low water (2) -> should un-latch
	if !p.AdmitConnection() {
		t.Fatal("expected admission to resume once below low water")
	}
	if p.Overloaded() {
		t.Fatal("expected overloaded latch cleared below low water")
	}
}

func TestAdmitInFlightCapsConcurrentRequests(t *testing.T) {
	p := New(&Counters{}, &Flags{}, 100, 0.9, 0.5, 2, 0, nil)
	if !p.AdmitInFlight() || !p.AdmitInFlight() {
		t.Fatal("expected first two in-flight admitted")
	}
	if p.AdmitInFlight() {
		t.Fatal("expected third in-flight rejected")
	}
	p.ReleaseInFlight()
	if !p.AdmitInFlight() {
		t.Fatal("expected admission to resume after release")
	}
}

func TestShouldShedBypassesGlobs(t *testing.T) {
	p := New(&Counters{}, &Flags{}, 100, 0.9, 0.5, 100, 1.0, []string{"/health/*"})
	if p.ShouldShed("/health/live") {
		t.Fatal("expected bypass path to never be shed")
	}
	if !p.ShouldShed("/api/widgets") {
		t.Fatal("expected shed_ratio=1.0 to always shed a non-bypassed path")
	}
}

func TestShouldShedZeroRatioNeverSheds(t *testing.T) {
	p := New(&Counters{}, &Flags{}, 100, 0.9, 0.5, 100, 0, nil)
	for i := 0; i < 100; i++ {
		if p.ShouldShed("/anything") {
			t.Fatal("expected shed_ratio=0 to never shed")
		}
	}
}

func TestHealthReadiness(t *testing.T) {
	flags := &Flags{}
	p := newTestPolicy(10, 0.9, 0.5)
	h := NewHealth(flags, p)

	if h.Readiness() {
		t.Fatal("expected not ready before Ready flag set")
	}
	flags.Ready.Store(true)
	if !h.Readiness() {
		t.Fatal("expected ready once flag set")
	}
	flags.ShuttingDown.Store(true)
	if h.Readiness() {
		t.Fatal("expected not ready once shutting down")
	}
}

func TestCircuitBreakerTripsAndHalfOpens(t *testing.T) {
	cb := NewCircuitBreaker(3, 20*time.Millisecond, nil)
	for i := 0; i < 3; i++ {
		if !cb.Allow("/x") {
			t.Fatalf("expected allow before threshold, iteration %d", i)
		}
		cb.RecordFailure()
	}
	if cb.State() != Open {
		t.Fatalf("expected Open after threshold failures, got %v", cb.State())
	}
	if cb.Allow("/x") {
		t.Fatal("expected Open to reject immediately")
	}

	time.Sleep(30 * time.Millisecond)
	if !cb.Allow("/x") {
		t.Fatal("expected HalfOpen to allow a trial after reset timeout")
	}
	if cb.State() != HalfOpen {
		t.Fatalf("expected HalfOpen, got %v", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != Closed {
		t.Fatal("expected trial success to close the breaker")
	}
}

func TestCircuitBreakerBypassPathsAlwaysAllowed(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour, []string{"/health/*"})
	cb.RecordFailure()
	if cb.State() != Open {
		t.Fatal("expected breaker open")
	}
	if !cb.Allow("/health/live") {
		t.Fatal("expected bypass path to always be allowed regardless of breaker state")
	}
}
