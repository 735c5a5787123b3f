package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"ERROR":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesJSONWithServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "INFO", Output: &buf})

	l.Debug().Msg("hidden")
	l.Info().Str("chat_id", "c1").Msg("saved")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected exactly one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "tweetsmith" {
		t.Errorf("Expected service field, got %v", entry["service"])
	}
	if entry["chat_id"] != "c1" {
		t.Errorf("Expected chat_id field, got %v", entry["chat_id"])
	}
}
