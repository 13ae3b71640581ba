package beoplay

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/beoplay/internal/state"
)

// Device is the control surface the bridge, the TUI and the CLI drive. It is
// implemented by *Client.
type Device interface {
	Host() string
	Snapshot() state.Snapshot
	Cooldown() Cooldown
	Refresh(ctx context.Context) error

	FetchDeviceInfo(ctx context.Context) (state.Identity, error)
	FetchSources(ctx context.Context) ([]state.Source, error)
	FetchSoundModes(ctx context.Context) ([]state.SoundMode, error)
	FetchStandPositions(ctx context.Context) ([]state.Position, error)

	SetVolume(ctx context.Context, level float64) error
	SetMute(ctx context.Context, muted bool) error
	Transport(ctx context.Context, action string) error
	Standby(ctx context.Context) error
	TurnOn(ctx context.Context) error
	SetSource(ctx context.Context, name string) error
	SetSoundMode(ctx context.Context, name string) error
	SetStandPosition(ctx context.Context, name string) error
	JoinExperience(ctx context.Context) error
	LeaveExperience(ctx context.Context) error
	PlayQueueItem(ctx context.Context, instant bool, item QueueItem) error
	RemoteCommand(ctx context.Context, cmd string, hold bool) error
	RemoteRelease(ctx context.Context, cmd string) error
	Press(ctx context.Context, cmd string) error
	Digit(ctx context.Context, digit string) error
}

// Ensure Client implements Device at compile time.
var _ Device = (*Client)(nil)

// Client talks to one BeoPlay device and keeps its snapshot current.
type Client struct {
	host      string
	gate      *Gate
	tracker   *Tracker
	stream    *http.Client
	store     *state.Store
	log       zerolog.Logger
	listening atomic.Bool
}

type options struct {
	timeout   time.Duration
	cooldown  int
	log       zerolog.Logger
	http      *http.Client
	requester Requester
}

// Option configures a Client.
type Option func(*options)

// WithTimeout sets the per-request timeout. It does not apply to the
// notification stream.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCooldown sets how many requests are skipped after a transport failure.
func WithCooldown(n int) Option {
	return func(o *options) { o.cooldown = n }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithHTTPClient sets the HTTP client used for requests. Its Transport is
// reused for the notification stream without the overall timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.http = hc }
}

// WithRequester replaces the HTTP transport for request/response calls. The
// cooldown tracker still wraps it.
func WithRequester(r Requester) Option {
	return func(o *options) { o.requester = r }
}

// NewClient builds a client for the device at host.
func NewClient(host string, opts ...Option) (*Client, error) {
	o := options{
		timeout:  DefaultTimeout,
		cooldown: DefaultCooldown,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.http
	if hc == nil {
		hc = &http.Client{Timeout: o.timeout}
	}
	gate, err := NewGate(host, hc)
	if err != nil {
		return nil, err
	}
	if o.timeout > 0 {
		gate.timeout = o.timeout
	}

	log := o.log.With().Str("host", gate.baseURL.Host).Logger()
	var next Requester = gate
	if o.requester != nil {
		next = o.requester
	}

	return &Client{
		host:    gate.baseURL.Host,
		gate:    gate,
		tracker: NewTracker(next, o.cooldown, log),
		stream:  streamClient(hc, o.timeout),
		store:   &state.Store{},
		log:     log,
	}, nil
}

// streamClient derives a client without an overall deadline; the stream is
// expected to stay open indefinitely.
func streamClient(hc *http.Client, headerTimeout time.Duration) *http.Client {
	if hc.Transport != nil {
		return &http.Client{Transport: hc.Transport}
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: t}
}

// Host returns host:port of the device.
func (c *Client) Host() string { return c.host }

// Snapshot returns a copy of the current device state.
func (c *Client) Snapshot() state.Snapshot { return c.store.Snapshot() }

// Identity returns the cached identity; it is empty until FetchDeviceInfo
// succeeded once.
func (c *Client) Identity() state.Identity { return c.store.Snapshot().Identity }

// SourceNames lists the cached source names in device order.
func (c *Client) SourceNames() []string {
	sources := c.store.Snapshot().Catalogue.Sources
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name)
	}
	return names
}

// Cooldown reports the request breaker.
func (c *Client) Cooldown() Cooldown { return c.tracker.State() }

// RemoteCommands lists the accepted remote command names.
func (c *Client) RemoteCommands() []string { return RemoteCommands() }

// Digits lists the accepted digit keys.
func (c *Client) Digits() []string { return Digits() }

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	if ctx == nil {
		return fmt.Errorf("%s %s: nil context", method, path)
	}
	return c.tracker.Do(ctx, method, path, body, dest)
}
