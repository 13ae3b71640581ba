package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

// StandbyFetcher reads the power state. The notification stream reports a
// source going away but not a device entering standby from its own buttons,
// so the power state is polled.
type StandbyFetcher interface {
	FetchStandby(ctx context.Context) (bool, error)
}

// StartPoller launches a background goroutine that re-reads the power state
// at a fixed cadence, backing off while the device fails. It returns
// immediately.
func StartPoller(ctx context.Context, dev StandbyFetcher, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	log = log.With().Str("component", "poller").Logger()
	go func() {
		failures := 0
		for {
			timer := time.NewTimer(calculateBackoff(failures, interval))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if _, err := dev.FetchStandby(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				log.Debug().Err(err).Int("failures", failures).Msg("standby poll failed")
				continue
			}
			failures = 0
		}
	}()
}

// calculateBackoff doubles interval per consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, interval time.Duration) time.Duration {
	if failures <= 0 {
		return interval
	}
	d := interval
	for range failures {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
