package gateway

import (
	"sync"
	"time"
)

// Breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// BreakerConfig holds the parameters for the gateway circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failed sends that opens
	// the circuit. Zero disables the breaker.
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Breaker stops outgoing sends to a gateway that keeps failing. While open,
// sends fail fast instead of waiting for the HTTP timeout on every callback.
type Breaker struct {
	mu          sync.Mutex
	state       string
	failures    int
	lastFailure time.Time
	cfg         BreakerConfig
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{state: StateClosed, cfg: cfg}
}

// Allow reports whether a send may be attempted. An open breaker lets a single
// trial request through once the reset timeout has passed.
func (b *Breaker) Allow() bool {
	if b == nil || b.cfg.FailureThreshold <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) > b.cfg.ResetTimeout {
			b.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		// One trial request at a time.
		return false
	default:
		return true
	}
}

// Success closes the breaker.
func (b *Breaker) Success() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.failures = 0
	b.state = StateClosed
	b.mu.Unlock()
}

// Failure counts a failed send and opens the breaker at the threshold or when
// the half-open trial request fails.
func (b *Breaker) Failure() {
	if b == nil || b.cfg.FailureThreshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()
	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
	}
}

// State returns the current breaker state.
func (b *Breaker) State() string {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
