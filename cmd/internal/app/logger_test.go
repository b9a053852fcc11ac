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

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger("debug", "json", &buf)
	log.Debug("identity.load", "identities", 8)

	out := buf.String()
	if !strings.Contains(out, `"msg":"identity.load"`) || !strings.Contains(out, `"identities":8`) {
		t.Fatalf("unexpected json output: %s", out)
	}
}

func TestNewLogger_PrettyIsPlainForBuffers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger("info", "pretty", &buf)
	log.Info("ledger.load", "events", 2)

	out := buf.String()
	if !strings.Contains(out, "msg=ledger.load") || strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected pretty output: %q", out)
	}
}
