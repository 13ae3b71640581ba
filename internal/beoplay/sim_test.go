package beoplay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/five82/beoplay/internal/beoplay/beoplaytest"
)

// simDevice is an httptest stand-in for a speaker: canned JSON endpoints plus
// an optional notification stream handler.
type simDevice struct {
	mu     sync.Mutex
	routes map[string]string
	hits   map[string]int
	stream http.HandlerFunc
	server *httptest.Server
}

func newSimDevice(t *testing.T) *simDevice {
	t.Helper()
	d := &simDevice{
		routes: map[string]string{
			"GET BeoDevice":                         beoplaytest.DeviceInfoJSON,
			"GET BeoZone/Zone/Sources":              beoplaytest.SourcesJSON,
			"GET BeoZone/Zone/ActiveSources":        beoplaytest.ActiveSourceJSON,
			"GET BeoDevice/powerManagement/standby": beoplaytest.StandbyOnJSON,
			"GET BeoZone/Zone/Sound/Volume":         beoplaytest.VolumeJSON,
			"GET BeoZone/Zone/Sound/Mode":           beoplaytest.SoundModesJSON,
			"GET BeoZone/Zone/Stand":                beoplaytest.StandJSON,
			"GET BeoZone/Zone/Stand/Active":         `{"active":"pos1"}`,
		},
		hits: map[string]int{},
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.server.Close)
	return d
}

func (d *simDevice) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	key := r.Method + " " + path

	d.mu.Lock()
	d.hits[key]++
	body, ok := d.routes[key]
	stream := d.stream
	d.mu.Unlock()

	if path == pathNotifications && stream != nil {
		stream(w, r)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (d *simDevice) set(method, path, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[method+" "+path] = body
}

func (d *simDevice) count(method, path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits[method+" "+path]
}

func (d *simDevice) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(d.server.Client())}, opts...)
	c, err := NewClient(d.server.URL, opts...)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}
