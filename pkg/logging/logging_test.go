package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"fintrack/pkg/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	level := slog.LevelWarn
	logger := logging.New(logging.Options{JSON: true, Level: &level, Writer: &buf})
	logger.Info("hidden")
	logger.Warn("shown", "obligation_id", "ob-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["msg"] != "shown" || rec["obligation_id"] != "ob-1" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestTextHandlerFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Writer: &buf, NoColor: true})
	logger.Warn("quiet")
	logger.Error("loud", "error", "boom")
	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") || !strings.Contains(out, "error=boom") {
		t.Fatalf("unexpected output: %q", out)
	}
}
