package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-cart/internal/obs"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all calls and tracks failures.
	Closed State = iota
	// Open rejects calls until the cool-off period expires.
	Open
	// HalfOpen lets a single probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes a Breaker.
type Config struct {
	// Target labels metrics and logs, e.g. "catalog".
	Target       string
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Breaker is a failure-ratio circuit breaker around a dependency.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

// NewBreaker constructs a breaker that opens once MinRequests calls were
// observed and the failure ratio reaches FailureRatio.
func NewBreaker(cfg Config) *Breaker {
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = 0.5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if strings.TrimSpace(cfg.Target) == "" {
		cfg.Target = "default"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	b := &Breaker{cfg: cfg}
	obs.SetBreakerState(cfg.Target, float64(Closed))
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the breaker is open. isFailure decides which errors count
// against the dependency; nil counts every non-nil error.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error, isFailure func(error) bool) error {
	if b == nil {
		return fn(ctx)
	}
	if !b.allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	failed := err != nil
	if failed && isFailure != nil {
		failed = isFailure(err)
	}
	b.report(ctx, !failed)
	return err
}

func (b *Breaker) allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.OpenFor {
			return false
		}
		b.transitionLocked(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

func (b *Breaker) report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	if success {
		b.successes++
	} else {
		b.failures++
	}
	total := b.failures + b.successes
	if total < b.cfg.MinRequests {
		return
	}
	if float64(b.failures)/float64(total) >= b.cfg.FailureRatio {
		b.transitionLocked(ctx, Open)
		return
	}
	if total > b.cfg.MinRequests*2 {
		// halve the window so old outcomes fade
		b.successes = (b.successes + 1) / 2
		b.failures = (b.failures + 1) / 2
	}
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.failures, b.successes = 0, 0
	switch next {
	case Open:
		b.openedAt = b.cfg.Now()
	case Closed:
		b.openedAt = time.Time{}
	}
	obs.SetBreakerState(b.cfg.Target, float64(next))
	obs.RecordBreakerTransition(b.cfg.Target, prev.String(), next.String())

	evt := b.cfg.Logger.Warn().Str("target", b.cfg.Target).Str("from_state", prev.String()).Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}
