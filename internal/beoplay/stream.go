package beoplay

import (
	"context"
	"net/http"

	"github.com/five82/beoplay/internal/metrics"
	"github.com/five82/beoplay/internal/notify"
	"github.com/five82/beoplay/internal/state"
)

// Event is handed to the Listen observer after a notification was merged.
// Err is set when the notification could not be merged; Snapshot is then the
// unchanged state.
type Event struct {
	Notification notify.Notification
	Snapshot     state.Snapshot
	Err          error
}

// Observer receives every notification envelope read from the stream.
type Observer func(Event)

// Listen opens the notification stream and merges every notification into the
// snapshot until the device closes the stream, the connection fails, or ctx
// is cancelled. It returns nil when the device ended the stream normally.
// Reconnecting is up to the caller.
//
// The stream bypasses the cooldown breaker. Only one Listen may run per
// client at a time.
func (c *Client) Listen(ctx context.Context, observe Observer) error {
	if !c.listening.CompareAndSwap(false, true) {
		return ErrAlreadyListening
	}
	defer c.listening.Store(false)

	streamURL, err := c.gate.URL(pathNotifications)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.gate.userAgent)

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Method: http.MethodGet, Path: pathNotifications, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Method: http.MethodGet, Path: pathNotifications, Code: resp.StatusCode}
	}
	c.log.Info().Msg("notification stream open")

	stats, err := notify.Read(ctx, resp.Body, c.log, func(n notify.Notification) {
		c.dispatch(n, observe)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Method: http.MethodGet, Path: pathNotifications, Err: err}
	}
	c.log.Info().Int("lines", stats.Lines).Int("delivered", stats.Delivered).Int("malformed", stats.Malformed).
		Msg("notification stream ended")
	return nil
}

func (c *Client) dispatch(n notify.Notification, observe Observer) {
	snap, err := c.store.Merge(n)
	if err != nil {
		metrics.NotificationsDropped.WithLabelValues("merge").Inc()
		c.log.Debug().Err(err).Str("kind", string(n.Kind)).RawJSON("notification", n.Raw).
			Msg("malformed notification")
	} else if n.Kind.Known() {
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind)).Inc()
		metrics.SnapshotVersion.Set(float64(snap.Version))
	}
	if observe != nil {
		observe(Event{Notification: n, Snapshot: snap, Err: err})
	}
}

// Merge folds a notification into the snapshot as if it had arrived on the
// stream and returns the resulting event.
func (c *Client) Merge(n notify.Notification) Event {
	var ev Event
	c.dispatch(n, func(e Event) { ev = e })
	return ev
}
