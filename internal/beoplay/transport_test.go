package beoplay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsPortAndNormalizes(t *testing.T) {
	cases := map[string]string{
		"192.168.1.20":                    "http://192.168.1.20:8080/",
		"beosound.local:8080":             "http://beosound.local:8080/",
		"http://10.0.0.5:9000/x?y=1#frag": "http://10.0.0.5:9000/",
		"  10.0.0.6  ":                    "http://10.0.0.6:8080/",
	}
	for in, want := range cases {
		u, err := parseBaseURL(in)
		if err != nil {
			t.Fatalf("parseBaseURL(%q) returned error: %v", in, err)
		}
		if got := u.String(); got != want {
			t.Fatalf("parseBaseURL(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := parseBaseURL(""); err == nil {
		t.Fatalf("parseBaseURL(\"\") returned nil error")
	}
}

func TestGate_URLKeepsQuery(t *testing.T) {
	g, err := NewGate("10.0.0.5", nil)
	if err != nil {
		t.Fatalf("NewGate returned error: %v", err)
	}
	got, err := g.URL(pathPlayQueue + queryInstantPlay)
	if err != nil {
		t.Fatalf("URL returned error: %v", err)
	}
	if want := "http://10.0.0.5:8080/BeoZone/Zone/PlayQueue?instantplay"; got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}
}

func TestGate_DoEncodesAndDecodes(t *testing.T) {
	var gotBody, gotType, gotAccept, gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	g, err := NewGate(server.URL, server.Client())
	if err != nil {
		t.Fatalf("NewGate returned error: %v", err)
	}

	var out struct {
		OK bool `json:"ok"`
	}
	if err := g.Do(context.Background(), http.MethodPut, pathMuted, map[string]bool{"muted": true}, &out); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !out.OK {
		t.Fatalf("response not decoded")
	}
	if gotMethod != http.MethodPut || gotPath != "/"+pathMuted {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody != `{"muted":true}` || gotType != "application/json" || gotAccept != "application/json" {
		t.Fatalf("body %q content-type %q accept %q", gotBody, gotType, gotAccept)
	}
}

func TestGate_StatusAndMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte(`{not json`))
		}
	}))
	t.Cleanup(server.Close)

	g, _ := NewGate(server.URL, server.Client())

	err := g.Do(context.Background(), http.MethodGet, "missing", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("Do error = %v, want StatusError 404", err)
	}

	var dest map[string]any
	err = g.Do(context.Background(), http.MethodGet, "broken", nil, &dest)
	if !errors.Is(err, ErrMalformedBody) {
		t.Fatalf("Do error = %v, want ErrMalformedBody", err)
	}
}

func TestGate_TransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	g, _ := NewGate(addr, &http.Client{Timeout: time.Second})
	err := g.Do(context.Background(), http.MethodGet, pathDevice, nil, nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Do error = %v, want TransportError", err)
	}
	if te.Timeout() {
		t.Fatalf("connection refused reported as timeout")
	}

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	g, _ = NewGate(slow.URL, &http.Client{Timeout: 50 * time.Millisecond})
	err = g.Do(context.Background(), http.MethodGet, pathDevice, nil, nil)
	if !errors.As(err, &te) || !te.Timeout() {
		t.Fatalf("Do error = %v, want timeout TransportError", err)
	}
}

func TestGate_CallerCancellationIsNotTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	g, _ := NewGate(server.URL, server.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := g.Do(ctx, http.MethodGet, pathDevice, nil, nil)
	var te *TransportError
	if errors.As(err, &te) {
		t.Fatalf("Do error = %v, want context error", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do error = %v, want context.DeadlineExceeded", err)
	}
}

func TestClient_TimeoutAppliesToSuppliedHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, WithHTTPClient(&http.Client{}), WithTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	start := time.Now()
	_, err = client.FetchStandby(context.Background())
	elapsed := time.Since(start)

	var te *TransportError
	if !errors.As(err, &te) || !te.Timeout() {
		t.Fatalf("FetchStandby error = %v, want timeout TransportError", err)
	}
	if elapsed > time.Second {
		t.Fatalf("FetchStandby took %v, want it bounded by the 100ms timeout", elapsed)
	}
	if cd := client.Cooldown(); cd.State != BreakerOpen || cd.Remaining != DefaultCooldown {
		t.Fatalf("Cooldown = %+v, want open with %d remaining", cd, DefaultCooldown)
	}
}
