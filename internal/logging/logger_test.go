package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerWritesComponentAndPairs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithHandler("stage", slog.NewTextHandler(&buf, nil))

	l.Info("Record extracted", "record", "r1", "outputs", 2)

	out := buf.String()
	for _, want := range []string{"component=stage", "record=r1", "outputs=2", `msg="Record extracted"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestLoggerDropsDanglingKey(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithHandler("test", slog.NewTextHandler(&buf, nil))

	l.Warn("odd", "record", "r1", "dangling")

	if strings.Contains(buf.String(), "dangling") || strings.Contains(buf.String(), "!BADKEY") {
		t.Errorf("dangling key was logged: %q", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		SetLevel(name)
		if got := level.Level(); got != want {
			t.Errorf("SetLevel(%q) = %v, want %v", name, got, want)
		}
	}
}
