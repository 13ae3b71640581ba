package beoplay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/beoplay/internal/metrics"
)

// DefaultCooldown is how many requests are skipped after a transport failure.
const DefaultCooldown = 5

// BreakerState is the position of the request breaker.
type BreakerState string

const (
	BreakerClosed BreakerState = "closed"
	BreakerOpen   BreakerState = "open"
)

// Cooldown describes the request breaker at one point in time.
type Cooldown struct {
	State     BreakerState `json:"state"`
	Remaining int          `json:"remaining"`
}

// Tracker wraps a Requester with a count based breaker. After a transport
// failure the next Length calls fail fast with ErrSkipped; the call after
// that goes to the network again. Status errors and malformed bodies come
// from a device that answered and leave the breaker closed.
type Tracker struct {
	next   Requester
	length int
	log    zerolog.Logger

	mu        sync.Mutex
	remaining int
}

// Ensure Tracker implements Requester at compile time.
var _ Requester = (*Tracker)(nil)

// NewTracker wraps next. A negative length is treated as zero, which
// disables skipping.
func NewTracker(next Requester, length int, log zerolog.Logger) *Tracker {
	if length < 0 {
		length = 0
	}
	return &Tracker{next: next, length: length, log: log}
}

// Allow consumes one skip if the breaker is open and reports whether the
// caller may go to the network.
func (t *Tracker) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.remaining > 0 {
		t.remaining--
		metrics.CooldownRemaining.Set(float64(t.remaining))
		return false
	}
	return true
}

// Trip opens the breaker for the configured number of calls.
func (t *Tracker) Trip() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.remaining = t.length
	metrics.CooldownRemaining.Set(float64(t.remaining))
}

// State returns the current breaker position.
func (t *Tracker) State() Cooldown {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.remaining > 0 {
		return Cooldown{State: BreakerOpen, Remaining: t.remaining}
	}
	return Cooldown{State: BreakerClosed}
}

// Do forwards the request unless the breaker is open.
func (t *Tracker) Do(ctx context.Context, method, path string, body, dest any) error {
	if !t.Allow() {
		metrics.RecordRequest(method, "skipped", 0)
		t.log.Debug().Str("method", method).Str("path", path).Int("remaining", t.State().Remaining).
			Msg("skipping request during cooldown")
		return fmt.Errorf("%s %s: %w", method, path, ErrSkipped)
	}

	start := time.Now()
	err := t.next.Do(ctx, method, path, body, dest)
	metrics.RecordRequest(method, outcome(err), time.Since(start))

	var te *TransportError
	if errors.As(err, &te) {
		t.Trip()
		t.log.Warn().Err(err).Str("method", method).Str("path", path).Bool("timeout", te.Timeout()).
			Int("cooldown", t.length).Msg("device unreachable")
	}
	return err
}
