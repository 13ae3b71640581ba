package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/soellman/pidfile"
	"github.com/thejerf/suture/v4"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/bridge"
	"github.com/five82/beoplay/internal/config"
	"github.com/five82/beoplay/internal/mqtt"
)

const shutdownTimeout = 10 * time.Second

// RunBridge serves the HTTP bridge for dev and keeps its notification stream
// open, optionally publishing snapshots to MQTT, until ctx is cancelled.
func RunBridge(ctx context.Context, dev *beoplay.Client, cfg config.Config, log zerolog.Logger) error {
	if path := cfg.Bridge.PIDFile; path != "" {
		if err := pidfile.Write(path); err != nil {
			return fmt.Errorf("bridge: write pid file %s: %w", path, err)
		}
		defer func() {
			if err := pidfile.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("remove pid file")
			}
		}()
	}

	watcher := NewWatcher(dev, cfg.Watch, log)
	handler := bridge.New(dev, log,
		bridge.WithStreamStatus(func() bool { return watcher.Status().Connected }),
		bridge.WithEvents(watcher.Subscribe),
		bridge.WithCORS(cfg.Bridge.CORSOrigins...),
		bridge.WithRateLimit(cfg.Bridge.RateLimit, time.Minute),
	).Handler()

	sup := suture.New("beoplay-bridge", suture.Spec{
		EventHook: supervisorHook(log),
		Timeout:   shutdownTimeout,
	})
	sup.Add(watcher)
	sup.Add(newHTTPService(&http.Server{
		Addr:              cfg.Bridge.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}))

	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewPublisher(cfg.MQTT, log)
		if err != nil {
			return err
		}
		events, cancel := watcher.Subscribe()
		defer cancel()
		sup.Add(&publisherService{pub: pub, events: events})
	}

	log.Info().Str("listen", cfg.Bridge.Listen).Str("host", dev.Host()).Msg("bridge starting")
	err := sup.Serve(ctx)

	if report, rerr := sup.UnstoppedServiceReport(); rerr == nil {
		for _, svc := range report {
			log.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}

// supervisorHook logs suture events through zerolog.
func supervisorHook(log zerolog.Logger) suture.EventHook {
	log = log.With().Str("component", "supervisor").Logger()
	return func(ev suture.Event) {
		log.Warn().Fields(ev.Map()).Msg(ev.String())
	}
}

// httpServer matches the *http.Server lifecycle methods.
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type httpService struct {
	server httpServer
}

func newHTTPService(server httpServer) *httpService {
	return &httpService{server: server}
}

// Serve implements suture.Service.
func (h *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *httpService) String() string { return "http-server" }

type publisherService struct {
	pub    *mqtt.Publisher
	events <-chan beoplay.Event
}

// Serve implements suture.Service.
func (p *publisherService) Serve(ctx context.Context) error {
	if err := p.pub.Connect(); err != nil {
		return err
	}
	return p.pub.Run(ctx, p.events)
}

func (p *publisherService) String() string { return "mqtt-publisher" }
