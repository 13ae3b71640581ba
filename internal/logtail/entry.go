package logtail

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Entry is one parsed log line.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	// Fields holds the remaining key=value pairs, sorted by key.
	Fields []string
	// Raw is the line as read. Lines that are not zerolog JSON only carry Raw.
	Raw string
}

var levelAbbrev = map[string]string{
	"trace": "TRC",
	"debug": "DBG",
	"info":  "INF",
	"warn":  "WRN",
	"error": "ERR",
	"fatal": "FTL",
	"panic": "PNC",
}

// Parse decodes a zerolog JSON line. Anything else comes back with only Raw
// set.
func Parse(line string) Entry {
	entry := Entry{Raw: line}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return entry
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return entry
	}

	if v, ok := fields["time"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			entry.Time = ts
		}
		delete(fields, "time")
	}
	if v, ok := fields["level"].(string); ok {
		entry.Level = v
		delete(fields, "level")
	}
	if v, ok := fields["message"].(string); ok {
		entry.Message = v
		delete(fields, "message")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry.Fields = append(entry.Fields, k+"="+formatValue(fields[k]))
	}
	return entry
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		if strings.ContainsAny(t, " \t") {
			return fmt.Sprintf("%q", t)
		}
		return t
	case nil:
		return "null"
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

// Structured reports whether the line was zerolog JSON.
func (e Entry) Structured() bool {
	return e.Level != "" || e.Message != "" || !e.Time.IsZero() || len(e.Fields) > 0
}

// LevelTag returns the three-letter level, or "???" when unknown.
func (e Entry) LevelTag() string {
	if tag, ok := levelAbbrev[strings.ToLower(e.Level)]; ok {
		return tag
	}
	return "???"
}

// String renders the entry as "15:04:05 INF message key=value".
func (e Entry) String() string {
	if !e.Structured() {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	b.WriteString(e.LevelTag())
	if e.Message != "" {
		b.WriteByte(' ')
		b.WriteString(e.Message)
	}
	for _, f := range e.Fields {
		b.WriteByte(' ')
		b.WriteString(f)
	}
	return b.String()
}
