package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/config"
	"github.com/five82/beoplay/internal/notify"
	"github.com/five82/beoplay/internal/state"
)

// fakeStreamer plays back one scripted Listen result per session.
type fakeStreamer struct {
	mu         sync.Mutex
	results    []error
	sessions   int
	refreshes  int
	refreshErr error
	events     []beoplay.Event
}

func (f *fakeStreamer) Host() string { return "fake" }

func (f *fakeStreamer) Snapshot() state.Snapshot {
	return state.Snapshot{Version: 7}
}

func (f *fakeStreamer) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshErr
}

func (f *fakeStreamer) Listen(ctx context.Context, observe beoplay.Observer) error {
	f.mu.Lock()
	idx := f.sessions
	f.sessions++
	events := f.events
	var res error
	if idx < len(f.results) {
		res = f.results[idx]
	}
	f.mu.Unlock()

	for _, ev := range events {
		observe(ev)
	}
	return res
}

type sleepRecorder struct {
	delays []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	if len(s.delays) >= s.limit {
		s.cancel()
		return ctx.Err()
	}
	return nil
}

func newTestWatcher(dev Streamer, cfg config.Watch, limit int) (*Watcher, *sleepRecorder, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(dev, cfg, zerolog.Nop())
	rec := &sleepRecorder{limit: limit, cancel: cancel}
	w.sleep = rec.sleep
	return w, rec, ctx
}

var errStream = &beoplay.TransportError{Method: "GET", Path: "BeoNotify/Notifications", Err: errors.New("reset")}

func TestWatcher_BackoffDoublesAndResetsAfterCleanEnd(t *testing.T) {
	dev := &fakeStreamer{results: []error{errStream, errStream, nil, errStream}}
	cfg := config.Watch{
		ReconnectDelay:  time.Second,
		BackoffMin:      2 * time.Second,
		BackoffMax:      60 * time.Second,
		BreakerFailures: 10,
		BreakerTimeout:  30 * time.Second,
	}
	w, rec, ctx := newTestWatcher(dev, cfg, 4)

	if err := w.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve error = %v, want context.Canceled", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, time.Second, 2 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", rec.delays, want)
		}
	}
	if dev.refreshes != 4 {
		t.Fatalf("refreshes = %d, want one per session", dev.refreshes)
	}
}

func TestWatcher_BackoffCapped(t *testing.T) {
	results := make([]error, 8)
	for i := range results {
		results[i] = errStream
	}
	dev := &fakeStreamer{results: results}
	cfg := config.Watch{BackoffMin: time.Second, BackoffMax: 5 * time.Second, BreakerFailures: 100}
	w, rec, ctx := newTestWatcher(dev, cfg, 6)

	_ = w.Serve(ctx)
	last := rec.delays[len(rec.delays)-1]
	if last != 5*time.Second {
		t.Fatalf("delays = %v, want capped at 5s", rec.delays)
	}
}

func TestWatcher_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	dev := &fakeStreamer{results: []error{errStream, errStream, errStream, errStream}}
	cfg := config.Watch{
		ReconnectDelay:  time.Second,
		BackoffMin:      2 * time.Second,
		BackoffMax:      60 * time.Second,
		BreakerFailures: 3,
		BreakerTimeout:  30 * time.Second,
	}
	w, rec, ctx := newTestWatcher(dev, cfg, 5)

	_ = w.Serve(ctx)

	if dev.sessions != 3 {
		t.Fatalf("sessions = %d, want 3 before the breaker opened", dev.sessions)
	}
	if got := w.Status().Breaker; got != "open" {
		t.Fatalf("breaker = %q, want open", got)
	}
	// After the third failure the loop waits out the open breaker.
	for _, d := range rec.delays[3:] {
		if d < 20*time.Second || d > 30*time.Second {
			t.Fatalf("delays = %v, want breaker hold near 30s", rec.delays)
		}
	}
}

func TestWatcher_RefreshFailureDoesNotBlockStream(t *testing.T) {
	dev := &fakeStreamer{refreshErr: beoplay.ErrSkipped, results: []error{nil}}
	w, _, ctx := newTestWatcher(dev, config.Watch{}, 1)
	events, cancel := w.Subscribe()
	defer cancel()

	_ = w.Serve(ctx)
	if dev.sessions != 1 {
		t.Fatalf("sessions = %d, want 1", dev.sessions)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected refresh event %#v after failed refresh", ev)
	default:
	}
}

func TestWatcher_FansOutEvents(t *testing.T) {
	n, _ := notify.Decode([]byte(`{"notification":{"type":"NOW_PLAYING_ENDED"}}`))
	dev := &fakeStreamer{
		results: []error{nil},
		events:  []beoplay.Event{{Notification: n, Snapshot: state.Snapshot{Version: 8}}},
	}
	w, _, ctx := newTestWatcher(dev, config.Watch{}, 1)
	a, cancelA := w.Subscribe()
	b, cancelB := w.Subscribe()
	cancelB()
	cancelB()

	_ = w.Serve(ctx)
	defer cancelA()

	first := <-a
	if first.Snapshot.Version != 7 || first.Notification.Kind != "" {
		t.Fatalf("first event = %#v, want refreshed snapshot", first)
	}
	second := <-a
	if second.Notification.Kind != notify.KindEnded || second.Snapshot.Version != 8 {
		t.Fatalf("second event = %#v", second)
	}
	if _, ok := <-b; ok {
		t.Fatalf("cancelled subscription still open")
	}
	if st := w.Status(); st.Connected || st.Sessions != 1 {
		t.Fatalf("status = %#v", st)
	}
}

func TestWatcher_SlowSubscriberDoesNotBlock(t *testing.T) {
	var events []beoplay.Event
	for i := 0; i < subscriberBuffer*2; i++ {
		events = append(events, beoplay.Event{Snapshot: state.Snapshot{Version: uint64(i)}})
	}
	dev := &fakeStreamer{results: []error{nil}, events: events}
	w, _, ctx := newTestWatcher(dev, config.Watch{}, 1)
	ch, cancel := w.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = w.Serve(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve blocked on a full subscriber")
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}
