package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false))

	log.Info("http.request", "method", "get", "path", "/healthz", "status", 200, "duration_ms", int64(3), "note", "two words")

	got := buf.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=http.request",
		"method=GET",
		"path=/healthz",
		"status=200",
		"duration=3ms",
		`note="two words"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Fatalf("unexpected ANSI escapes in %q", got)
	}
}

func TestPrettyHandler_LevelFilterAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record should be filtered, got %q", buf.String())
	}

	log.WithGroup("auth").With("user_id", "u1").Warn("auth.refresh.reuse_detected", "revoked", 2)
	got := buf.String()
	if !strings.Contains(got, "lvl=[WARN]") || !strings.Contains(got, "auth.user_id=u1") || !strings.Contains(got, "auth.revoked=2") {
		t.Fatalf("unexpected line %q", got)
	}
}

func TestPrettyHandler_Color(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true))
	log.Error("server.fail", "status", 503)

	got := buf.String()
	if !strings.Contains(got, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("expected red level tag in %q", got)
	}
	if !strings.Contains(got, ansiRed+"503"+ansiReset) {
		t.Fatalf("expected red status in %q", got)
	}
}

func TestValueToInt64(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   slog.Value
		want int64
		ok   bool
	}{
		{in: slog.Int64Value(7), want: 7, ok: true},
		{in: slog.Uint64Value(9), want: 9, ok: true},
		{in: slog.StringValue(" 42 "), want: 42, ok: true},
		{in: slog.StringValue("nope"), ok: false},
		{in: slog.BoolValue(true), ok: false},
	}
	for _, tc := range cases {
		got, ok := valueToInt64(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("valueToInt64(%v)=%d,%v want %d,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
