// Package bridge serves a small HTTP API over one BeoPlay device, for home
// automation tools that cannot talk to the device's own API.
//
// Reads:
//
//	GET  /healthz            host, cooldown, stream connection
//	GET  /metrics            Prometheus collectors
//	GET  /state              cached snapshot and cooldown
//	GET  /sources            fetched source catalogue
//	GET  /sound-modes
//	GET  /stands
//	GET  /events             WebSocket, see below
//
// Commands answer with the state after the command, so optimistic updates
// are visible immediately:
//
//	POST /refresh
//	POST /volume             {"level": 0.3}
//	POST /mute               {"muted": true}
//	POST /transport/{action} play, pause, stop, forward, backward, stepup, ...
//	POST /standby
//	POST /on
//	POST /source             {"name": "TuneIn"}
//	POST /sound-mode         {"name": "Movie"}
//	POST /stand              {"name": "Left"}
//	POST /remote             {"command": "Cursor/Up", "hold": false, "release": false}
//	POST /digit              {"digit": 7}
//	POST /queue              {"service": "tunein", "id": "s24861", "instant": true}
//	POST /experience/join
//	POST /experience/leave
//
// With WithEvents, GET /events upgrades to a WebSocket. The first frame is
// the cached snapshot; every stream event after that is sent as
// {"kind": "VOLUME", "error": "...", "snapshot": {...}}.
//
// WithRateLimit limits the POST routes per client IP; over the limit they
// answer 429. WithCORS admits browser pages from the listed origins.
//
// Errors are {"error": "..."} with 400 for rejected arguments, 503 while the
// client is cooling down, 502 when the device answered with an error or an
// unexpected body, and 504 when it could not be reached.
package bridge
