package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/config"
	"github.com/five82/beoplay/internal/prefs"
	"github.com/five82/beoplay/internal/ui"
)

// TUIOptions configure RunTUI.
type TUIOptions struct {
	Prefs     prefs.Prefs
	PrefsPath string // empty uses default ~/.config/beoplay/prefs.toml
	// LogPath is shown in the log pane; empty hides it.
	LogPath string
}

// RunTUI runs the dashboard for dev until the user quits or ctx is
// cancelled. The notification stream and the standby poller run in the
// background for as long as the UI is up.
func RunTUI(ctx context.Context, dev *beoplay.Client, cfg config.Config, opts TUIOptions, log zerolog.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	watcher := NewWatcher(dev, cfg.Watch, log)
	events, unsubscribe := watcher.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Serve(ctx)
	}()
	StartPoller(ctx, dev, defaultPollInterval, log)

	err := ui.Run(ui.Options{
		Context:   ctx,
		Device:    dev,
		Events:    events,
		Status:    func() ui.StreamStatus { return streamStatus(watcher.Status()) },
		LogPath:   opts.LogPath,
		Prefs:     opts.Prefs,
		PrefsPath: opts.PrefsPath,
	})

	stop()
	<-done
	return err
}

func streamStatus(s WatchStatus) ui.StreamStatus {
	return ui.StreamStatus{
		Connected:   s.Connected,
		Breaker:     s.Breaker,
		LastErr:     s.LastErr,
		NextAttempt: s.NextAttempt,
	}
}
