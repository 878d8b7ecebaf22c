package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewLoggerTo_FormatSelection(t *testing.T) {
	var buf bytes.Buffer
	log := newLoggerTo(&buf, "info", "json", false)
	log.Info("server.start", "addr", ":8080")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("json handler expected, got %q", buf.String())
	}

	buf.Reset()
	log = newLoggerTo(&buf, "info", "pretty", false)
	log.Info("server.start", "addr", ":8080")
	if !strings.Contains(buf.String(), "msg=server.start") {
		t.Fatalf("pretty handler expected, got %q", buf.String())
	}
}
