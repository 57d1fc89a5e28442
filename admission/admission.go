// Package admission implements C10: connection-count hysteresis,
// in-flight request capping, probabilistic load shedding, and the
// liveness/readiness/startup health signals. Generalized from
// engine-level connection bookkeeping (a connection map guarded by a
// mutex plus a max-connections field) into a standalone policy object
// the Server and Worker both consult, plus a CLOSED/OPEN/HALF_OPEN
// circuit breaker state machine for the optional circuit-breaker
// contract.
package admission

import (
	"math/rand"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Counters are the observable atomic counters, shared read-write by
// the Server/Workers and read-only by the Metrics snapshot.
type Counters struct {
	AcceptedTotal      atomic.Int64
	RejectedTotal      atomic.Int64
	CurrentConnections atomic.Int64
	CurrentInFlight    atomic.Int64
	ConnectionsKeepAlive atomic.Int64
}

// Flags are the Server-wide state flags from the data model.
type Flags struct {
	Ready         atomic.Bool
	ShuttingDown  atomic.Bool
	Starting      atomic.Bool
}

// Policy is the admission/backpressure/shedding decision surface,
// built once per Server and shared read-only by all Workers.
type Policy struct {
	MaxConnections           int
	ConnectionHighWater      float64
	ConnectionLowWater       float64
	MaxInFlightRequests      int
	ShedRatio                float64
	ShedBypassGlobs          []string

	counters *Counters
	flags    *Flags

	// overloaded latches true once current_connections crosses the
	// high-water mark, and stays true (hysteresis) until it drops
	// below low-water — this is the one piece of Policy state that
	// isn't a plain atomic counter, so it's guarded by its own flag
	// rather than recomputed from the ratio on every check, which
	// would flap right at the boundary.
	overloaded atomic.Bool
}

// New constructs a Policy sharing counters/flags with the Server.
func New(counters *Counters, flags *Flags, maxConnections int, highWater, lowWater float64, maxInFlight int, shedRatio float64, shedBypassGlobs []string) *Policy {
	return &Policy{
		MaxConnections:      maxConnections,
		ConnectionHighWater: highWater,
		ConnectionLowWater:  lowWater,
		MaxInFlightRequests: maxInFlight,
		ShedRatio:           shedRatio,
		ShedBypassGlobs:     shedBypassGlobs,
		counters:            counters,
		flags:               flags,
	}
}

// AdmitConnection is consulted at accept time only (invariant 6:
// rejections occur at accept time only). Returns false if the
// connection must be refused.
func (p *Policy) AdmitConnection() bool {
	current := p.counters.CurrentConnections.Load()
	if current >= int64(p.MaxConnections) {
		p.counters.RejectedTotal.Add(1)
		return false
	}

	high := float64(p.MaxConnections) * p.ConnectionHighWater
	low := float64(p.MaxConnections) * p.ConnectionLowWater

	if p.overloaded.Load() {
		if float64(current) < low {
			p.overloaded.Store(false)
		} else {
			p.counters.RejectedTotal.Add(1)
			return false
		}
	} else if float64(current) >= high {
		p.overloaded.Store(true)
		p.counters.RejectedTotal.Add(1)
		return false
	}

	p.counters.AcceptedTotal.Add(1)
	p.counters.CurrentConnections.Add(1)
	return true
}

// ReleaseConnection decrements the connection counter at CLOSING.
func (p *Policy) ReleaseConnection() {
	p.counters.CurrentConnections.Add(-1)
}

// AdmitInFlight gates the Connection's transition into PROCESSING with
// an in-flight request cap. A request already admitted into PROCESSING
// before the cap trips always completes; only a *new* request's
// admission is gated here.
func (p *Policy) AdmitInFlight() bool {
	for {
		cur := p.counters.CurrentInFlight.Load()
		if cur >= int64(p.MaxInFlightRequests) {
			return false
		}
		if p.counters.CurrentInFlight.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// ReleaseInFlight decrements the in-flight counter once a response has
// been fully written (or the request otherwise completes).
func (p *Policy) ReleaseInFlight() {
	p.counters.CurrentInFlight.Add(-1)
}

// ShouldShed applies probabilistic load shedding, bypassing any path
// matching ShedBypassGlobs (health endpoints by default).
func (p *Policy) ShouldShed(path string) bool {
	if p.ShedRatio <= 0 {
		return false
	}
	for _, glob := range p.ShedBypassGlobs {
		if ok, _ := filepath.Match(glob, path); ok {
			return false
		}
	}
	return rand.Float64() < p.ShedRatio
}

// Overloaded reports the current hysteresis-latched overload state,
// consulted by the readiness health check.
func (p *Policy) Overloaded() bool {
	return p.overloaded.Load()
}

// Health is the three-signal liveness/readiness/startup surface.
type Health struct {
	flags  *Flags
	policy *Policy
}

// NewHealth binds a Health view to the Server's flags and Policy.
func NewHealth(flags *Flags, policy *Policy) *Health {
	return &Health{flags: flags, policy: policy}
}

// Liveness reports whether the process is running and able to answer
// at all; Aurora always answers true once the health endpoint itself
// is reachable (an unreachable reactor never gets this far).
func (h *Health) Liveness() bool { return true }

// Readiness is ready && !shutting_down && !overloaded.
func (h *Health) Readiness() bool {
	return h.flags.Ready.Load() && !h.flags.ShuttingDown.Load() && !h.policy.Overloaded()
}

// Startup reports the explicit startup-signal flag.
func (h *Health) Startup() bool { return h.flags.Starting.Load() }

// CircuitState is the breaker's state machine position.
type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

// CircuitBreaker is an optional, contract-only middleware:
// CLOSED→OPEN→HALF_OPEN with fixed timeouts (a consecutive-failure
// threshold trips to OPEN; a reset timeout advances OPEN to HALF_OPEN;
// one trial success in HALF_OPEN closes it again, one trial failure
// reopens it).
type CircuitBreaker struct {
	Threshold    int
	ResetTimeout time.Duration
	BypassPaths  []string

	state       atomic.Int32
	failures    atomic.Int32
	openedAt    atomic.Int64 // unix nanos
}

// NewCircuitBreaker constructs a breaker starting CLOSED.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration, bypassPaths []string) *CircuitBreaker {
	return &CircuitBreaker{Threshold: threshold, ResetTimeout: resetTimeout, BypassPaths: bypassPaths}
}

// Allow reports whether a call may proceed given the breaker's current
// state, advancing OPEN to HALF_OPEN once ResetTimeout has elapsed.
func (cb *CircuitBreaker) Allow(path string) bool {
	for _, glob := range cb.BypassPaths {
		if ok, _ := filepath.Match(glob, path); ok {
			return true
		}
	}

	switch CircuitState(cb.state.Load()) {
	case Closed:
		return true
	case Open:
		if time.Now().UnixNano()-cb.openedAt.Load() >= cb.ResetTimeout.Nanoseconds() {
			cb.state.CompareAndSwap(int32(Open), int32(HalfOpen))
			return true
		}
		return false
	default: // HalfOpen
		return true
	}
}

// RecordSuccess closes the breaker (from HALF_OPEN) or resets the
// failure count (from CLOSED).
func (cb *CircuitBreaker) RecordSuccess() {
	cb.failures.Store(0)
	cb.state.Store(int32(Closed))
}

// RecordFailure increments the failure count, tripping to OPEN once
// Threshold consecutive failures have been recorded, or immediately
// reopening from HALF_OPEN on a single trial failure.
func (cb *CircuitBreaker) RecordFailure() {
	if CircuitState(cb.state.Load()) == HalfOpen {
		cb.state.Store(int32(Open))
		cb.openedAt.Store(time.Now().UnixNano())
		return
	}
	n := cb.failures.Add(1)
	if int(n) >= cb.Threshold {
		cb.state.Store(int32(Open))
		cb.openedAt.Store(time.Now().UnixNano())
	}
}

// State returns the breaker's current state, for diagnostics/metrics.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(cb.state.Load())
}
