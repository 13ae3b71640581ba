package bridge

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/state"
)

const (
	maxBodyBytes   = 64 << 10
	commandTimeout = 15 * time.Second
)

// quietPaths are polled by monitoring and not request-logged.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// Server exposes a device over HTTP.
type Server struct {
	dev       beoplay.Device
	log       zerolog.Logger
	connected func() bool
	subscribe Subscribe

	corsOrigins []string
	rateLimit   int
	rateWindow  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithStreamStatus reports the notification stream state on /healthz.
func WithStreamStatus(connected func() bool) Option {
	return func(s *Server) { s.connected = connected }
}

// WithCORS allows browser pages served from origins to call the bridge.
func WithCORS(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRateLimit caps device commands at requests per window for each client
// IP. Reads are not limited. requests <= 0 disables the limit.
func WithRateLimit(requests int, window time.Duration) Option {
	if window <= 0 {
		window = time.Minute
	}
	return func(s *Server) { s.rateLimit, s.rateWindow = requests, window }
}

// New returns a bridge for dev.
func New(dev beoplay.Device, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{dev: dev, log: log.With().Str("component", "bridge").Logger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the bridge routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/state", s.handleState)
	r.Get("/sources", s.handleSources)
	r.Get("/sound-modes", s.handleSoundModes)
	r.Get("/stands", s.handleStands)
	if s.subscribe != nil {
		r.Get("/events", s.handleEvents)
	}

	r.Group(func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, s.rateWindow))
		}
		r.Post("/refresh", s.handleRefresh)
		r.Post("/volume", s.handleVolume)
		r.Post("/mute", s.handleMute)
		r.Post("/transport/{action}", s.handleTransport)
		r.Post("/standby", s.command(s.dev.Standby))
		r.Post("/on", s.command(s.dev.TurnOn))
		r.Post("/source", s.handleNamed(s.dev.SetSource))
		r.Post("/sound-mode", s.handleNamed(s.dev.SetSoundMode))
		r.Post("/stand", s.handleNamed(s.dev.SetStandPosition))
		r.Post("/remote", s.handleRemote)
		r.Post("/digit", s.handleDigit)
		r.Post("/queue", s.handleQueue)
		r.Post("/experience/join", s.command(s.dev.JoinExperience))
		r.Post("/experience/leave", s.command(s.dev.LeaveExperience))
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if quietPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("bridge request")
	})
}

type stateResponse struct {
	Snapshot state.Snapshot   `json:"snapshot"`
	Cooldown beoplay.Cooldown `json:"cooldown"`
}

func (s *Server) currentState() stateResponse {
	return stateResponse{Snapshot: s.dev.Snapshot(), Cooldown: s.dev.Cooldown()}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status    string           `json:"status"`
		Host      string           `json:"host"`
		Connected *bool            `json:"connected,omitempty"`
		Cooldown  beoplay.Cooldown `json:"cooldown"`
	}{Status: "ok", Host: s.dev.Host(), Cooldown: s.dev.Cooldown()}
	if s.connected != nil {
		c := s.connected()
		resp.Connected = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.dev.FetchSources(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleSoundModes(w http.ResponseWriter, r *http.Request) {
	modes, err := s.dev.FetchSoundModes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, modes)
}

func (s *Server) handleStands(w http.ResponseWriter, r *http.Request) {
	positions, err := s.dev.FetchStandPositions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, s.dev.Refresh)
}

type volumeRequest struct {
	Level *float64 `json:"level"`
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Level == nil {
		s.writeError(w, r, badRequest("level is required"))
		return
	}
	s.run(w, r, func(ctx context.Context) error { return s.dev.SetVolume(ctx, *req.Level) })
}

type muteRequest struct {
	Muted *bool `json:"muted"`
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Muted == nil {
		s.writeError(w, r, badRequest("muted is required"))
		return
	}
	s.run(w, r, func(ctx context.Context) error { return s.dev.SetMute(ctx, *req.Muted) })
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	s.run(w, r, func(ctx context.Context) error { return s.dev.Transport(ctx, action) })
}

func (s *Server) command(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, fn)
	}
}

type namedRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleNamed(fn func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req namedRequest
		if !s.decode(w, r, &req) {
			return
		}
		s.run(w, r, func(ctx context.Context) error { return fn(ctx, req.Name) })
	}
}

type remoteRequest struct {
	Command string `json:"command"`
	Hold    bool   `json:"hold"`
	Release bool   `json:"release"`
}

func (s *Server) handleRemote(w http.ResponseWriter, r *http.Request) {
	var req remoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Hold && req.Release {
		s.writeError(w, r, badRequest("hold and release are exclusive"))
		return
	}
	s.run(w, r, func(ctx context.Context) error {
		switch {
		case req.Release:
			return s.dev.RemoteRelease(ctx, req.Command)
		case req.Hold:
			return s.dev.RemoteCommand(ctx, req.Command, true)
		default:
			return s.dev.Press(ctx, req.Command)
		}
	})
}

type digitRequest struct {
	Digit json.Number `json:"digit"`
}

func (s *Server) handleDigit(w http.ResponseWriter, r *http.Request) {
	var req digitRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.run(w, r, func(ctx context.Context) error { return s.dev.Digit(ctx, req.Digit.String()) })
}

type queueRequest struct {
	Service string `json:"service"`
	ID      string `json:"id"`
	Instant bool   `json:"instant"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if !s.decode(w, r, &req) {
		return
	}
	item, err := beoplay.QueueItemFor(req.Service, req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.run(w, r, func(ctx context.Context) error { return s.dev.PlayQueueItem(ctx, req.Instant, item) })
}

// run executes a device command and answers with the resulting state.
func (s *Server) run(w http.ResponseWriter, r *http.Request, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		s.writeError(w, r, badRequest("invalid request body: "+err.Error()))
		return false
	}
	return true
}

type requestError struct{ msg string }

func (e requestError) Error() string { return e.msg }

func badRequest(msg string) error { return requestError{msg: msg} }

// StatusFor maps a device error onto an HTTP status.
func StatusFor(err error) int {
	var (
		req requestError
		te  *beoplay.TransportError
		se  *beoplay.StatusError
	)
	switch {
	case errors.As(err, &req), errors.Is(err, beoplay.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, beoplay.ErrSkipped):
		return http.StatusServiceUnavailable
	case errors.As(err, &te):
		return http.StatusGatewayTimeout
	case errors.As(err, &se), errors.Is(err, beoplay.ErrMalformedBody):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	event := s.log.Debug()
	if code >= http.StatusInternalServerError {
		event = s.log.Warn()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", code).Msg("bridge command failed")
	writeJSON(w, code, map[string]string{"error": strings.TrimSpace(err.Error())})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
