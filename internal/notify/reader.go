package notify

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/five82/beoplay/internal/metrics"
)

// maxLineSize bounds a single notification line. NOW_PLAYING payloads with
// embedded image lists stay far below this.
const maxLineSize = 1024 * 1024

// Stats summarizes one pass over a notification stream.
type Stats struct {
	Lines     int
	Delivered int
	Malformed int
}

// Handler receives every line that decoded into a notification envelope.
type Handler func(Notification)

// Read decodes newline delimited notifications from r until EOF, a read error,
// or ctx cancellation. Lines may end in LF, CR or CRLF; blank lines are
// skipped. Lines that are not notification envelopes, including lines longer
// than maxLineSize, are logged and counted but never stop the loop.
//
// Read returns nil at EOF and ctx.Err() when cancelled.
func Read(ctx context.Context, r io.Reader, log zerolog.Logger, handle Handler) (Stats, error) {
	var stats Stats

	split := &lineSplitter{limit: maxLineSize}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(split.split)

	oversized := 0
	countOversized := func() {
		for ; oversized < split.dropped; oversized++ {
			stats.Lines++
			stats.Malformed++
			metrics.NotificationsDropped.WithLabelValues("oversized").Inc()
			log.Warn().Int("limit", maxLineSize).Msg("skipping oversized notification line")
		}
	}

	for scanner.Scan() {
		countOversized()
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		n, err := Decode(line)
		if err != nil {
			stats.Malformed++
			metrics.NotificationsDropped.WithLabelValues("decode").Inc()
			log.Debug().Err(err).Bytes("line", truncate(line, 256)).Msg("skipping notification line")
			continue
		}
		stats.Delivered++
		if handle != nil {
			handle(n)
		}
	}

	countOversized()
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, ctxErr
		}
		return stats, fmt.Errorf("read notifications: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// lineSplitter is bufio.ScanLines with CR accepted as a terminator too. A
// CRLF pair yields an empty token that Read skips. A line that reaches limit
// without a terminator is consumed without a token and counted in dropped.
type lineSplitter struct {
	limit      int
	discarding bool
	dropped    int
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		if s.discarding {
			s.discarding = false
			s.dropped++
		}
		return 0, nil, nil
	}
	i := bytes.IndexAny(data, "\r\n")
	if s.discarding {
		switch {
		case i >= 0:
			s.discarding = false
			s.dropped++
			return i + 1, nil, nil
		case atEOF:
			s.discarding = false
			s.dropped++
		}
		return len(data), nil, nil
	}
	if i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	if len(data) >= s.limit {
		s.discarding = true
		return len(data), nil, nil
	}
	return 0, nil, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
