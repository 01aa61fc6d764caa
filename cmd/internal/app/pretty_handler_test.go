package app

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false))

	log.With("view", "chats").WithGroup("sync").Info("view.change",
		"action", "create",
		"topic", "/topic/chats/bob",
		"dur_ms", int64(12),
		"note", "two words",
	)

	out := buf.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=view.change",
		"view=chats",
		"sync.action=CREATE",
		"sync.topic=/topic/chats/bob",
		"sync.duration=12ms",
		`sync.note="two words"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "sync.view") {
		t.Fatalf("attrs bound before a group must not be qualified: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("plain output must not contain escapes: %q", out)
	}
}

func TestPrettyHandler_LevelFilterAndColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, true))

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn: %q", buf.String())
	}

	log.Warn("rest.unauthorized", "status", 401, "err", errors.New("boom"))
	out := buf.String()
	if !strings.Contains(out, ansiYellow+"[WARN]"+ansiReset) {
		t.Fatalf("level tag not colored: %q", out)
	}
	if !strings.Contains(out, ansiYellow+"401"+ansiReset) {
		t.Fatalf("status not colored: %q", out)
	}
	if !strings.Contains(out, ansiRed+"boom"+ansiReset) {
		t.Fatalf("err not colored: %q", out)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":        `""`,
		"plain":   "plain",
		"a b":     `"a b"`,
		"k=v":     `"k=v"`,
		`say "x"`: `"say \"x\""`,
	}
	for in, want := range cases {
		if got := quoteIfNeeded(in); got != want {
			t.Fatalf("quoteIfNeeded(%q)=%q want %q", in, got, want)
		}
	}
}
