// Package beoplaytest provides a scripted stand-in for the device API.
package beoplaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

// Call is one request seen by a Recorder. Body is the JSON encoding of the
// request body, or "" when there was none.
type Call struct {
	Method string
	Path   string
	Body   string
}

func (c Call) String() string {
	if c.Body == "" {
		return c.Method + " " + c.Path
	}
	return c.Method + " " + c.Path + " " + c.Body
}

// Recorder implements beoplay.Requester. It answers from canned JSON bodies
// and records every call it receives.
type Recorder struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []Call
}

// NewRecorder returns an empty Recorder. Requests without a canned answer
// succeed with no body.
func NewRecorder() *Recorder {
	return &Recorder{responses: map[string]string{}, errs: map[string]error{}}
}

func key(method, path string) string { return method + " " + path }

// Respond makes method+path answer with the given JSON body.
func (r *Recorder) Respond(method, path, body string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[key(method, path)] = body
	return r
}

// Fail makes method+path return err.
func (r *Recorder) Fail(method, path string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[key(method, path)] = err
	return r
}

// Do records the call and replays the scripted outcome.
func (r *Recorder) Do(ctx context.Context, method, path string, body, dest any) error {
	call := Call{Method: method, Path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		call.Body = string(data)
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	err := r.errs[key(method, path)]
	resp, ok := r.responses[key(method, path)]
	r.mu.Unlock()

	if err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if ok && dest != nil {
		return json.Unmarshal([]byte(resp), dest)
	}
	return nil
}

// Calls returns the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Last returns the most recent call, or the zero Call.
func (r *Recorder) Last() Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Call{}
	}
	return r.calls[len(r.calls)-1]
}

// Reset forgets recorded calls but keeps the script.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Canned responses of a typical speaker.
const (
	DeviceInfoJSON = `{"beoDevice":{"productId":{"productType":"BeoSound 35","typeNumber":"2714","serialNumber":"28240839","itemNumber":"1200298"},` +
		`"productFriendlyName":{"productFriendlyName":"Living Room"},"software":{"version":"1.22.24654"},"hardware":{"version":"1.0"}}}`
	SourcesJSON = `{"sources":[` +
		`["spotify:2714.1200298.28240839@products.bang-olufsen.com",{"friendlyName":"Spotify","inUse":true,"borrowed":false}],` +
		`["linein:2714.1200298.28240839@products.bang-olufsen.com",{"friendlyName":"Line-In","inUse":false,"borrowed":false}],` +
		`["radio:2714.1200298.28240839@products.bang-olufsen.com",{"friendlyName":"TuneIn","inUse":true,"borrowed":true}]]}`
	ActiveSourceJSON = `{"primaryExperience":{"source":{"friendlyName":"Spotify"},"listenerList":{"listener":[{"jid":"2714.1200298.28240839@products.bang-olufsen.com"}]}}}`
	StandbyOnJSON    = `{"standby":{"powerState":"on"}}`
	VolumeJSON       = `{"volume":{"speaker":{"level":35,"muted":false,"range":{"minimum":0,"maximum":90}}}}`
	SoundModesJSON   = `{"mode":{"list":[{"id":1,"friendlyName":"Adaptive"},{"id":2,"friendlyName":"Movie"}],"active":2}}`
	StandJSON        = `{"stand":{"list":[{"id":"pos1","friendlyName":"Left"},{"id":"pos2","friendlyName":"Right"}]}}`
)

// Speaker returns a Recorder scripted with the canned speaker responses.
func Speaker() *Recorder {
	return NewRecorder().
		Respond("GET", "BeoDevice", DeviceInfoJSON).
		Respond("GET", "BeoZone/Zone/Sources", SourcesJSON).
		Respond("GET", "BeoZone/Zone/ActiveSources", ActiveSourceJSON).
		Respond("GET", "BeoDevice/powerManagement/standby", StandbyOnJSON).
		Respond("GET", "BeoZone/Zone/Sound/Volume", VolumeJSON).
		Respond("GET", "BeoZone/Zone/Sound/Mode", SoundModesJSON).
		Respond("GET", "BeoZone/Zone/Stand", StandJSON).
		Respond("GET", "BeoZone/Zone/Stand/Active", `{"active":"pos2"}`)
}
