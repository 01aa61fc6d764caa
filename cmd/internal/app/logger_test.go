package app

import (
	"bytes"
	"encoding/json"
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

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	var js bytes.Buffer
	newLoggerTo(&js, "debug", "json", false).Debug("gate.status", "to", "AUTHENTICATED")
	var rec map[string]any
	if err := json.Unmarshal(js.Bytes(), &rec); err != nil {
		t.Fatalf("json output: %v (%q)", err, js.String())
	}
	if rec["msg"] != "gate.status" || rec["to"] != "AUTHENTICATED" || rec["source"] == nil {
		t.Fatalf("unexpected record: %v", rec)
	}

	var pretty bytes.Buffer
	newLoggerTo(&pretty, "info", "PRETTY", false).Info("gate.status", "to", "AUTHENTICATED")
	if out := pretty.String(); !strings.Contains(out, "msg=gate.status") || !strings.Contains(out, "to=AUTHENTICATED") {
		t.Fatalf("pretty output: %q", out)
	}
}
