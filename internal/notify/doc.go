// Package notify decodes the device's push notification stream.
//
// # Wire Format
//
// The device answers GET BeoNotify/Notifications with a response that never
// ends on its own. Each line is one JSON object:
//
//	{"notification": {"type": "VOLUME", "timestamp": "...", "kind": "renderer",
//	                  "data": {"speaker": {"level": 35, "muted": false,
//	                           "range": {"minimum": 0, "maximum": 90}}}}}
//
// Only the "notification" envelope and its "type" are mandatory. A line
// without them is malformed and skipped. A line with a valid envelope is
// always delivered, even when its data does not fit the kind; in that case
// Notification.Err says why and Payload is nil.
//
// # Kinds
//
// Each supported type decodes into its own Payload variant (Volume, Source,
// Experience, Progress, StoredMusic, StoredVideo, NetRadio, Legacy, Ended,
// NumberAndName, SoundMode). Anything else becomes Unknown and is ignored by
// the state merger.
//
// Decoding is tolerant where firmware differs: numbers may arrive as numeric
// strings, listener lists may hold plain ids or {"jid": ...} objects, and
// station languages may be a single string or a list.
//
// # Reading
//
// Read drives a bufio.Scanner over the response body and hands each decoded
// notification to a Handler. It knows nothing about the HTTP connection; the
// beoplay client owns that and decides what to do when Read returns.
//
// Line framing:
//
//   - LF, CR and CRLF all end a line
//   - blank lines are skipped and not counted
//   - a line longer than 1 MiB is discarded up to its terminator and counted
//     as malformed; reading continues with the next line
//
// # Outcomes
//
// Read reports one of three endings:
//
//	nil            the body hit EOF (the device closed the stream)
//	ctx.Err()      the caller cancelled
//	wrapped error  the body failed mid-read
//
// Stats counts non-blank lines, delivered notifications and malformed
// lines for the end-of-session log entry. Malformed lines also increment
// beoplay_notifications_dropped_total with reason "decode" or "oversized".
//
// # Delivery Order
//
// The handler runs on the reading goroutine, one notification at a time, in
// stream order. A slow handler slows the read; fan-out to several consumers
// happens above this package (app.Watcher).
//
// # Decoding a Single Line
//
// Decode is usable without Read:
//
//	n, err := notify.Decode(line)
//	switch {
//	case err != nil:
//		// not an envelope: skip
//	case n.Err != nil:
//		// known kind, bad data: n.Payload is nil
//	default:
//		switch p := n.Payload.(type) {
//		case notify.Volume:
//			...
//		}
//	}
//
// ParseVolume decodes the same speaker object that GET .../Speaker/Level
// returns, so the client and the stream share one volume representation.
//
// # Testing Considerations
//
// Read accepts any io.Reader: strings.Reader for fixed input, io.Pipe for
// streams that must stay open, and a reader that fails after some data for
// error paths.
package notify
