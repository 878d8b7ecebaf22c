package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandler_RendersDomainKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false))

	log.Info("join.success",
		"presentation_id", "01HZX3K9Q8D7C6B5A4Z3Y2X1W0",
		"participant_name", "Curious Otter",
		"duration_ms", int64(12),
	)

	line := buf.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=join.success",
		"pres=…Z3Y2X1W0",
		`participant_name="Curious Otter"`,
		"duration=12ms",
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
}

func TestPrettyHandler_ColorMatchesPlainOnceStripped(t *testing.T) {
	t.Parallel()

	var plain, colored bytes.Buffer
	attrs := []any{"method", "GET", "path", "/api/join", "status", 429, "result", "client_error"}

	slog.New(newPrettyHandler(&plain, nil, false)).Warn("http.request", attrs...)
	slog.New(newPrettyHandler(&colored, nil, true)).Warn("http.request", attrs...)

	// Timestamps differ at millisecond resolution; compare from the level on.
	trim := func(s string) string { return s[strings.Index(s, "lvl="):] }
	if got, want := trim(stripANSI(colored.String())), trim(plain.String()); got != want {
		t.Fatalf("colored=%q plain=%q", got, want)
	}
	if !strings.Contains(colored.String(), ansiYellow+"429"+ansiReset) {
		t.Fatalf("4xx status not highlighted: %q", colored.String())
	}
}

func TestPrettyHandler_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))
	log.Info("hub.subscribe")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
}
