// Package beoplay is the client for the BeoPlay JSON API of Bang & Olufsen
// network speakers and TVs.
//
// # Overview
//
// A Client talks to one device at http://{host}:8080/ and keeps a
// state.Snapshot of it current. The snapshot is fed from three directions:
//
//   - the notification stream (Listen), which pushes every change the device
//     makes on its own
//   - the Fetch* accessors, which read a resource and store the result
//   - commands such as SetVolume or Standby, which update the snapshot
//     optimistically before the device confirms
//
// # Request Path
//
// Request/response calls go through two layers:
//
//	Client method ──→ Tracker ──→ Gate ──→ device
//	                    │
//	                    └─ open: ErrSkipped, no network
//
// Gate performs one HTTP call with a fixed timeout (5s by default) and
// classifies the outcome: success, *StatusError for a non-2xx answer,
// ErrMalformedBody for a 2xx body that does not decode, or *TransportError
// when the device could not be reached.
//
// Tracker is a count based breaker. A transport failure opens it for the
// next N calls (5 by default); those return ErrSkipped immediately. The call
// after them goes to the network again. Devices that drop off the network
// make every request wait for the full timeout; the breaker keeps a UI that
// polls from freezing for N × timeout.
//
// # Notification Stream
//
// Listen holds a GET on BeoNotify/Notifications open with no overall
// deadline, decodes each line (see package notify) and merges it into the
// snapshot. The observer, if any, sees each notification after the merge
// together with the resulting snapshot. Listen returns nil when the device
// closes the stream and an error when the connection fails; reconnecting is
// up to the caller (see app.Watcher).
//
// # Validation
//
// Commands validate their arguments before sending anything: volume must be
// in [0, 1], remote commands must be in RemoteCommands, digits in 0-9, and
// source, sound mode and stand position names must exist in the cached
// catalogue. Failures wrap ErrInvalidArgument.
//
// # Errors
//
// Every request/response call returns one of:
//
//	nil                  success
//	*TransportError      device unreachable, connection reset or the call
//	                     timed out; arms the cooldown
//	*StatusError         non-2xx answer; Code holds the status
//	ErrMalformedBody     2xx answer that does not decode
//	ErrSkipped           cooldown open, nothing was sent
//	ErrInvalidArgument   rejected before sending
//	ctx.Err()            the caller cancelled or its deadline passed
//
// Use errors.Is and errors.As. TransportError.Timeout reports whether the
// failure was a timeout. Only the caller's own context produces a bare
// context error; the per-call timeout is a TransportError.
//
// # Timeouts
//
// WithTimeout bounds every request/response call, whatever http.Client was
// passed to WithHTTPClient. The notification stream has no overall
// deadline; with the default transport the timeout bounds waiting for its
// response headers.
//
// # Cooldown
//
// Cooldown reports the breaker as {State, Remaining}:
//
//	closed                normal operation
//	open, Remaining = n   the next n calls return ErrSkipped
//
// WithCooldown(0) disables it. The count is exposed on
// beoplay_cooldown_remaining.
//
// # Options
//
//	WithTimeout(d)       per-call timeout, default 5s
//	WithCooldown(n)      calls skipped after a transport failure, default 5
//	WithLogger(log)      zerolog logger, default zerolog.Nop()
//	WithHTTPClient(hc)   custom client; its Transport also serves the stream
//	WithRequester(r)     replaces the Gate for request/response calls
//
// # Concurrency
//
// A Client is safe for concurrent use. Commands, fetches and Snapshot may run
// while Listen is merging; the state.Store serializes them. Only one Listen
// may run at a time (ErrAlreadyListening).
//
// # Usage Example
//
//	dev, err := beoplay.NewClient("192.168.1.40", beoplay.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	if err := dev.Refresh(ctx); err != nil {
//		log.Warn().Err(err).Msg("initial refresh")
//	}
//	go func() { _ = dev.Listen(ctx, nil) }()
//	if err := dev.SetVolume(ctx, 0.3); errors.Is(err, beoplay.ErrSkipped) {
//		// device recently unreachable
//	}
//
// # Testing
//
// WithRequester swaps the HTTP transport for any Requester.
// beoplaytest.Recorder is a scripted one that records calls.
package beoplay
