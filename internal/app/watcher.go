package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/config"
	"github.com/five82/beoplay/internal/metrics"
	"github.com/five82/beoplay/internal/state"
)

const subscriberBuffer = 64

// Streamer is the part of the device client the watcher drives.
type Streamer interface {
	Host() string
	Snapshot() state.Snapshot
	Refresh(ctx context.Context) error
	Listen(ctx context.Context, observe beoplay.Observer) error
}

// WatchStatus describes the stream connection for display.
type WatchStatus struct {
	Connected bool
	Breaker   string
	Sessions  int
	LastErr   error
	// NextAttempt is zero while connected.
	NextAttempt time.Time
}

// Watcher keeps the notification stream of one device open, reconnecting with
// backoff, and fans merged events out to subscribers.
type Watcher struct {
	dev     Streamer
	cfg     config.Watch
	log     zerolog.Logger
	breaker *gobreaker.CircuitBreaker[struct{}]

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	subs      map[int]chan beoplay.Event
	nextSub   int
	status    WatchStatus
	openUntil time.Time
}

// NewWatcher returns a watcher for dev. Zero values in cfg take the config
// package defaults.
func NewWatcher(dev Streamer, cfg config.Watch, log zerolog.Logger) *Watcher {
	def := config.Default().Watch
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = def.BackoffMin
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = max(def.BackoffMax, cfg.BackoffMin)
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}

	w := &Watcher{
		dev:   dev,
		cfg:   cfg,
		log:   log.With().Str("component", "watcher").Logger(),
		now:   time.Now,
		sleep: sleepContext,
		subs:  map[int]chan beoplay.Event{},
	}
	w.status.Breaker = breakerName(gobreaker.StateClosed)
	metrics.StreamBreakerState.Set(0)

	w.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notification-stream",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			w.log.Info().Str("from", breakerName(from)).Str("to", breakerName(to)).Msg("stream breaker state change")
			metrics.StreamBreakerState.Set(breakerValue(to))
			w.mu.Lock()
			w.status.Breaker = breakerName(to)
			if to == gobreaker.StateOpen {
				w.openUntil = w.now().Add(cfg.BreakerTimeout)
			}
			w.mu.Unlock()
		},
	})
	return w
}

// Subscribe returns a channel of events and a function that cancels the
// subscription. Events are dropped for subscribers that fall behind.
func (w *Watcher) Subscribe() (<-chan beoplay.Event, func()) {
	ch := make(chan beoplay.Event, subscriberBuffer)
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
			close(ch)
		})
	}
}

// Status returns the current connection status.
func (w *Watcher) Status() WatchStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Serve runs the reconnect loop until ctx is cancelled. It implements
// suture.Service.
func (w *Watcher) Serve(ctx context.Context) error {
	backoff := w.cfg.BackoffMin
	for {
		_, err := w.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, w.session(ctx)
		})
		if ctx.Err() != nil {
			w.setConnected(false, nil, time.Time{})
			return ctx.Err()
		}

		var delay time.Duration
		switch {
		case err == nil:
			metrics.StreamSessions.WithLabelValues("ended").Inc()
			w.log.Info().Dur("delay", w.cfg.ReconnectDelay).Msg("notification stream ended, reconnecting")
			backoff = w.cfg.BackoffMin
			delay = w.cfg.ReconnectDelay

		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.StreamSessions.WithLabelValues("rejected").Inc()
			w.mu.Lock()
			delay = w.openUntil.Sub(w.now())
			w.mu.Unlock()
			delay = max(delay, w.cfg.ReconnectDelay)
			w.log.Debug().Dur("delay", delay).Msg("stream breaker open, holding reconnect")

		default:
			metrics.StreamSessions.WithLabelValues("failed").Inc()
			w.log.Warn().Err(err).Dur("delay", backoff).Msg("notification stream failed")
			delay = backoff
			backoff = min(backoff*2, w.cfg.BackoffMax)
		}

		w.setConnected(false, err, w.now().Add(delay))
		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (w *Watcher) session(ctx context.Context) error {
	if err := w.dev.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Warn().Err(err).Msg("refresh before stream failed")
	} else {
		w.publish(beoplay.Event{Snapshot: w.dev.Snapshot()})
	}

	w.mu.Lock()
	w.status.Sessions++
	w.mu.Unlock()
	w.setConnected(true, nil, time.Time{})
	return w.dev.Listen(ctx, w.publish)
}

func (w *Watcher) setConnected(connected bool, err error, next time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Connected = connected
	if err != nil || connected {
		w.status.LastErr = err
	}
	w.status.NextAttempt = next
}

func (w *Watcher) publish(ev beoplay.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- ev:
		default:
			metrics.NotificationsDropped.WithLabelValues("slow_subscriber").Inc()
		}
	}
}

func (w *Watcher) String() string {
	return "watcher(" + w.dev.Host() + ")"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func breakerName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
