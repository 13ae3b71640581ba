package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/config"
	"github.com/five82/beoplay/internal/state"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t fakeToken) Wait() bool                     { return !t.timeout }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient implements the paho.Client methods the publisher uses; the
// embedded interface panics on anything else.
type fakeClient struct {
	paho.Client

	mu           sync.Mutex
	published    []message
	publishErr   error
	disconnected bool
	connects     int
	connectToken paho.Token
}

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectToken != nil {
		return c.connectToken
	}
	return fakeToken{}
}

// pendingToken times out until finish is called.
type pendingToken struct {
	mu   sync.Mutex
	done bool
}

func (t *pendingToken) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
}

func (t *pendingToken) Wait() bool { return t.WaitTimeout(0) }
func (t *pendingToken) WaitTimeout(time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
func (t *pendingToken) Error() error          { return nil }
func (t *pendingToken) Done() <-chan struct{} { return make(chan struct{}) }

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return fakeToken{err: c.publishErr}
	}
	c.published = append(c.published, message{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return fakeToken{}
}

func (c *fakeClient) messages() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.published...)
}

func TestPublish_RetainedOncePerVersion(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, "beoplay/state", zerolog.Nop())

	snap := state.Snapshot{Version: 3, Source: state.Ptr("TuneIn")}
	for i := 0; i < 2; i++ {
		if err := p.Publish(snap); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}
	msgs := client.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != "beoplay/state" || !msgs[0].retained || msgs[0].qos != publishQoS {
		t.Fatalf("message = %+v", msgs[0])
	}
	var decoded state.Snapshot
	if err := json.Unmarshal(msgs[0].payload, &decoded); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if decoded.Version != 3 || *decoded.Source != "TuneIn" {
		t.Fatalf("payload = %#v", decoded)
	}

	snap.Version = 4
	if err := p.Publish(snap); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if n := len(client.messages()); n != 2 {
		t.Fatalf("published %d messages after a new version, want 2", n)
	}
}

func TestPublish_FailureRetriesSameVersion(t *testing.T) {
	client := &fakeClient{publishErr: errors.New("not connected")}
	p := newPublisher(client, "t", zerolog.Nop())

	if err := p.Publish(state.Snapshot{Version: 1}); err == nil {
		t.Fatalf("Publish returned nil error")
	}
	client.mu.Lock()
	client.publishErr = nil
	client.mu.Unlock()
	if err := p.Publish(state.Snapshot{Version: 1}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if n := len(client.messages()); n != 1 {
		t.Fatalf("published %d messages, want the retried one", n)
	}
}

func TestObserve_SkipsMergeErrors(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, "t", zerolog.Nop())

	p.Observe(beoplay.Event{Snapshot: state.Snapshot{Version: 1}, Err: errors.New("bad payload")})
	if n := len(client.messages()); n != 0 {
		t.Fatalf("published %d messages for a failed merge", n)
	}
}

func TestRun_DrainsUntilClosed(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, "t", zerolog.Nop())

	events := make(chan beoplay.Event, 3)
	events <- beoplay.Event{Snapshot: state.Snapshot{Version: 1}}
	events <- beoplay.Event{Snapshot: state.Snapshot{Version: 1}}
	events <- beoplay.Event{Snapshot: state.Snapshot{Version: 2}}
	close(events)

	if err := p.Run(context.Background(), events); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if n := len(client.messages()); n != 2 {
		t.Fatalf("published %d messages, want 2", n)
	}
	if !client.disconnected {
		t.Fatalf("Run did not disconnect")
	}
}

func TestNewPublisher_RequiresBroker(t *testing.T) {
	if _, err := NewPublisher(config.MQTT{}, zerolog.Nop()); err == nil {
		t.Fatalf("NewPublisher without broker returned nil error")
	}
	p, err := NewPublisher(config.MQTT{Broker: "tcp://127.0.0.1:1883", Topic: "x", ClientID: "test"}, zerolog.Nop())
	if err != nil || p == nil {
		t.Fatalf("NewPublisher = %v, %v", p, err)
	}
}

func TestConnect_WaitsOnPendingAttempt(t *testing.T) {
	token := &pendingToken{}
	client := &fakeClient{connectToken: token}
	p := newPublisher(client, "beoplay/state", zerolog.Nop())

	if err := p.Connect(); err == nil {
		t.Fatalf("Connect returned nil error while the attempt is pending")
	}
	token.finish()
	if err := p.Connect(); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if client.connects != 1 {
		t.Fatalf("client.Connect calls = %d, want 1", client.connects)
	}

	if err := p.Connect(); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if client.connects != 2 {
		t.Fatalf("client.Connect calls = %d, want 2 after the first attempt finished", client.connects)
	}
}
