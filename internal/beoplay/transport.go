package beoplay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	defaultPort      = "8080"
	defaultUserAgent = "beoplay/0.1"
	// DefaultTimeout bounds every request except the notification stream.
	DefaultTimeout = 5 * time.Second
)

// Requester performs one JSON request against the device API. path is
// relative to the API root and may carry a query string.
type Requester interface {
	Do(ctx context.Context, method, path string, body, dest any) error
}

// Ensure Gate implements Requester at compile time.
var _ Requester = (*Gate)(nil)

// Gate is the plain HTTP transport to one device.
type Gate struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	// timeout bounds each call regardless of the http.Client settings.
	timeout time.Duration
}

// NewGate builds a Gate for host, which may be a bare address, host:port, or
// a full http URL. The port defaults to 8080.
func NewGate(host string, hc *http.Client) (*Gate, error) {
	base, err := parseBaseURL(host)
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	timeout := DefaultTimeout
	if hc.Timeout > 0 {
		timeout = hc.Timeout
	}
	return &Gate{baseURL: base, http: hc, userAgent: defaultUserAgent, timeout: timeout}, nil
}

// URL resolves path against the device API root.
func (g *Gate) URL(path string) (string, error) {
	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	return g.baseURL.ResolveReference(rel).String(), nil
}

// Do sends the request. body is JSON encoded when non-nil; a 2xx response body
// is decoded into dest when dest is non-nil.
func (g *Gate) Do(ctx context.Context, method, path string, body, dest any) error {
	reqURL, err := g.URL(path)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// Errors check the caller's ctx: only the caller cancelling is not a
	// transport failure. The call deadline firing is.
	req, err := http.NewRequestWithContext(callCtx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Method: method, Path: path, Err: err}
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedBody, method, path, err)
	}
	return nil
}

func parseBaseURL(host string) (*url.URL, error) {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return nil, fmt.Errorf("device host is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse host %q: %w", host, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse host %q: no host", host)
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), defaultPort)
	}
	u.Path = "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
