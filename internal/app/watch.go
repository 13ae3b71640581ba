package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/config"
	"github.com/five82/beoplay/internal/notify"
	"github.com/five82/beoplay/internal/state"
)

// watchLine is one line of `beoplay watch` output.
type watchLine struct {
	Time     time.Time       `json:"time"`
	Kind     notify.Kind     `json:"kind,omitempty"`
	Error    string          `json:"error,omitempty"`
	Raw      json.RawMessage `json:"notification,omitempty"`
	Snapshot *state.Snapshot `json:"snapshot,omitempty"`
}

// RunWatch streams events from dev to out as JSON lines until ctx is
// cancelled. With full set every line carries the resulting snapshot.
func RunWatch(ctx context.Context, dev Streamer, cfg config.Watch, out io.Writer, full bool, log zerolog.Logger) error {
	watcher := NewWatcher(dev, cfg, log)
	events, cancel := watcher.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan error, 1)
	go func() { done <- watcher.Serve(ctx) }()

	enc := json.NewEncoder(out)
	for {
		select {
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case ev := <-events:
			if err := enc.Encode(newWatchLine(ev, full)); err != nil {
				return fmt.Errorf("write event: %w", err)
			}
		}
	}
}

func newWatchLine(ev beoplay.Event, full bool) watchLine {
	line := watchLine{Time: ev.Snapshot.LastUpdated, Kind: ev.Notification.Kind}
	if line.Time.IsZero() {
		line.Time = time.Now()
	}
	if len(ev.Notification.Raw) > 0 {
		line.Raw = ev.Notification.Raw
	}
	if ev.Err != nil {
		line.Error = ev.Err.Error()
	}
	// Refresh events have no notification; always include their snapshot.
	if full || ev.Notification.Kind == "" {
		snap := ev.Snapshot
		line.Snapshot = &snap
	}
	return line
}
