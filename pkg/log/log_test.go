package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return out
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf))

	l.Info("session created",
		String("session", "s-1"),
		Strings("libraries", []string{"APPLIB", "QGPL"}),
		Int("open", 2),
		Bool("applied", true),
		Duration("elapsed", 1500*time.Millisecond),
		Err(errors.New("boom")),
	)

	got := decode(t, &buf)
	if got["message"] != "session created" || got["level"] != "info" {
		t.Errorf("message/level = %v/%v", got["message"], got["level"])
	}
	if got["session"] != "s-1" || got["open"] != float64(2) || got["applied"] != true {
		t.Errorf("fields = %v", got)
	}
	if got["error"] != "boom" {
		t.Errorf("error field = %v, want boom", got["error"])
	}
	if libs, ok := got["libraries"].([]any); !ok || len(libs) != 2 {
		t.Errorf("libraries = %v", got["libraries"])
	}
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf)).With(String("address", "loopback"))
	l.Warn("environment apply warning")

	got := decode(t, &buf)
	if got["address"] != "loopback" || got["level"] != "warn" {
		t.Errorf("got %v", got)
	}
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))
	l.Debug("hidden", String("k", "v"))
	if buf.Len() != 0 {
		t.Errorf("debug message written at info level: %q", buf.String())
	}
}

func TestZerologAdapter_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(Logger)
	}{
		{"debug", func(l Logger) { l.Debug("m") }},
		{"info", func(l Logger) { l.Info("m") }},
		{"warn", func(l Logger) { l.Warn("m") }},
		{"error", func(l Logger) { l.Error("m") }},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewZerologAdapterWithLogger(zerolog.New(&buf)))
			if got := decode(t, &buf)["level"]; got != tt.level {
				t.Errorf("level = %v, want %s", got, tt.level)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"Error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	child := r.With(String("session", "s-1"))
	child.Info("acquired")
	r.Warn("released unknown session")

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() = %d, want 2", len(entries))
	}
	if len(entries[0].Fields) != 1 || entries[0].Fields[0].Value != "s-1" {
		t.Errorf("child fields = %v", entries[0].Fields)
	}
	if r.Count("warn") != 1 || r.Count("info") != 1 {
		t.Errorf("counts warn=%d info=%d", r.Count("warn"), r.Count("info"))
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Errorf("OrNoop(nil) = %T, want NoopLogger", OrNoop(nil))
	}
	r := NewRecorder()
	if OrNoop(r) != Logger(r) {
		t.Error("OrNoop(r) did not return r")
	}
}
