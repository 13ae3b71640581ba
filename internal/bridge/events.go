package bridge

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/metrics"
	"github.com/five82/beoplay/internal/notify"
	"github.com/five82/beoplay/internal/state"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
)

// Subscribe registers a listener for stream events. The returned func
// unregisters it and closes the channel.
type Subscribe func() (<-chan beoplay.Event, func())

// WithEvents enables GET /events, a WebSocket feed of stream events.
func WithEvents(subscribe Subscribe) Option {
	return func(s *Server) { s.subscribe = subscribe }
}

// eventMessage is one frame on the /events socket.
type eventMessage struct {
	Kind     notify.Kind     `json:"kind,omitempty"`
	Error    string          `json:"error,omitempty"`
	Snapshot *state.Snapshot `json:"snapshot"`
}

func newEventMessage(ev beoplay.Event) eventMessage {
	msg := eventMessage{Kind: ev.Notification.Kind, Snapshot: &ev.Snapshot}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

func (s *Server) upgrader() websocket.Upgrader {
	up := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
	}
	if len(s.corsOrigins) > 0 {
		up.CheckOrigin = s.checkOrigin
	}
	return up
}

// checkOrigin admits same-origin requests plus the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	events, cancel := s.subscribe()
	defer cancel()
	defer func() { _ = conn.Close() }()

	log := s.log.With().Str("subscriber", uuid.NewString()).Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("event subscriber connected")
	metrics.EventSubscribers.Inc()
	defer metrics.EventSubscribers.Dec()

	// The current state goes first so clients need no extra GET /state.
	snap := s.dev.Snapshot()
	if err := s.writeFrame(conn, eventMessage{Snapshot: &snap}); err != nil {
		return
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			log.Info().Msg("event subscriber disconnected")
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			if err := s.writeFrame(conn, newEventMessage(ev)); err != nil {
				log.Debug().Err(err).Msg("event write failed")
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, msg eventMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// readPump discards client frames and keeps the read deadline moving with
// pongs. closed is closed once the connection stops reading.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
