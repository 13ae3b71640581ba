package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beoplay.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}
	return path
}

func TestRead(t *testing.T) {
	var content strings.Builder
	var all []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		all = append(all, line)
	}
	path := writeLog(t, content.String())

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{"zero", 0, nil},
		{"negative", -1, nil},
		{"partial", 5, all[5:]},
		{"exactly all", 10, all},
		{"more than exists", 20, all},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(path, tt.maxLines)
			if err != nil {
				t.Fatalf("Read returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("Read = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_SpansChunks(t *testing.T) {
	var content strings.Builder
	pad := strings.Repeat("x", 1000)
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&content, "%03d %s\r\n", i, pad)
	}
	content.WriteString("tail without newline")
	path := writeLog(t, content.String())

	got, err := Read(path, 30)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(got) != 30 {
		t.Fatalf("Read returned %d lines, want 30", len(got))
	}
	if !strings.HasPrefix(got[0], "071 ") || got[29] != "tail without newline" {
		t.Fatalf("first/last = %q / %q", got[0][:4], got[29])
	}
	for _, line := range got {
		if strings.HasSuffix(line, "\r") {
			t.Fatalf("line kept carriage return: %q", line[len(line)-4:])
		}
	}
}

func TestRead_MissingAndEmpty(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read(missing) = %v, %v", got, err)
	}
	got, err = Read(writeLog(t, "\n\n"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read(empty) = %v, %v", got, err)
	}
}

func TestParse_ZerologLine(t *testing.T) {
	line := `{"level":"warn","host":"192.168.1.40","remaining":5,"error":"dial tcp: refused","time":"2026-10-14T09:30:00Z","message":"device unreachable"}`
	e := Parse(line)

	if !e.Structured() || e.Level != "warn" || e.Message != "device unreachable" {
		t.Fatalf("entry = %#v", e)
	}
	if !e.Time.Equal(time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("time = %v", e.Time)
	}
	wantFields := []string{`error="dial tcp: refused"`, "host=192.168.1.40", "remaining=5"}
	if !reflect.DeepEqual(e.Fields, wantFields) {
		t.Fatalf("fields = %v, want %v", e.Fields, wantFields)
	}
	want := e.Time.Local().Format("15:04:05") + ` WRN device unreachable error="dial tcp: refused" host=192.168.1.40 remaining=5`
	if got := e.String(); got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

func TestParse_NonJSONKeptVerbatim(t *testing.T) {
	for _, line := range []string{"09:30:00 INF console line", "{broken", ""} {
		e := Parse(line)
		if e.Structured() || e.String() != line {
			t.Fatalf("Parse(%q) = %#v", line, e)
		}
	}
}

func TestParse_NestedAndUnknownLevel(t *testing.T) {
	e := Parse(`{"level":"chatty","notification":{"type":"VOLUME"},"listeners":["a"],"gone":null}`)
	if e.LevelTag() != "???" {
		t.Fatalf("LevelTag = %q", e.LevelTag())
	}
	want := []string{"gone=null", "listeners=[\"a\"]", `notification={"type":"VOLUME"}`}
	if !reflect.DeepEqual(e.Fields, want) {
		t.Fatalf("fields = %v, want %v", e.Fields, want)
	}
}
