// Package mqtt publishes device snapshots to an MQTT broker as retained JSON.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/config"
	"github.com/five82/beoplay/internal/metrics"
	"github.com/five82/beoplay/internal/state"
)

const (
	publishQoS     = 1
	publishTimeout = 10 * time.Second
)

// Publisher writes the snapshot to a topic whenever its version changes.
type Publisher struct {
	client paho.Client
	topic  string
	log    zerolog.Logger

	mu   sync.Mutex
	last uint64
	sent bool
	// connecting is a connect attempt that outlived a Connect call. paho
	// keeps retrying it, so the next Connect waits on it instead of
	// starting another.
	connecting paho.Token
}

// NewPublisher builds a paho client for cfg. It does not connect; call
// Connect before Run.
func NewPublisher(cfg config.MQTT, log zerolog.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is not configured")
	}
	log = log.With().Str("component", "mqtt").Str("broker", cfg.Broker).Logger()

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		log.Info().Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})

	return newPublisher(paho.NewClient(opts), cfg.Topic, log), nil
}

func newPublisher(client paho.Client, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{client: client, topic: topic, log: log}
}

// Connect connects to the broker. When an earlier attempt is still pending
// it waits on that attempt.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	if p.connecting == nil {
		p.connecting = p.client.Connect()
	}
	token := p.connecting
	p.mu.Unlock()

	if !token.WaitTimeout(publishTimeout) {
		return errors.New("mqtt connect timed out")
	}
	p.mu.Lock()
	p.connecting = nil
	p.mu.Unlock()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Observe publishes ev's snapshot unless that version was already sent.
// Events carrying a merge error are ignored.
func (p *Publisher) Observe(ev beoplay.Event) {
	if ev.Err != nil {
		return
	}
	if err := p.Publish(ev.Snapshot); err != nil {
		p.log.Warn().Err(err).Uint64("version", ev.Snapshot.Version).Msg("mqtt publish failed")
	}
}

// Publish sends snap as a retained message if its version is new.
func (p *Publisher) Publish(snap state.Snapshot) error {
	p.mu.Lock()
	if p.sent && snap.Version == p.last {
		p.mu.Unlock()
		metrics.MQTTPublishes.WithLabelValues("unchanged").Inc()
		return nil
	}
	p.mu.Unlock()

	payload, err := json.Marshal(snap)
	if err != nil {
		metrics.MQTTPublishes.WithLabelValues("error").Inc()
		return fmt.Errorf("encode snapshot: %w", err)
	}

	token := p.client.Publish(p.topic, publishQoS, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		metrics.MQTTPublishes.WithLabelValues("timeout").Inc()
		return fmt.Errorf("publish %s: timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		metrics.MQTTPublishes.WithLabelValues("error").Inc()
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}

	p.mu.Lock()
	p.last, p.sent = snap.Version, true
	p.mu.Unlock()
	metrics.MQTTPublishes.WithLabelValues("ok").Inc()
	p.log.Debug().Uint64("version", snap.Version).Str("topic", p.topic).Msg("snapshot published")
	return nil
}

// Run publishes every event from events until the channel closes or ctx is
// done, then disconnects.
func (p *Publisher) Run(ctx context.Context, events <-chan beoplay.Event) error {
	defer p.client.Disconnect(250)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.Observe(ev)
		}
	}
}
