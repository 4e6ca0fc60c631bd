package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelForVerbosity(t *testing.T) {
	cases := []struct {
		v    int
		want slog.Level
	}{
		{0, slog.LevelWarn},
		{1, slog.LevelInfo},
		{2, slog.LevelDebug},
		{5, slog.LevelDebug},
	}
	for _, c := range cases {
		if got := LevelForVerbosity(c.v); got != c.want {
			t.Errorf("LevelForVerbosity(%d) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Error("ParseLevel(DEBUG)")
	}
	if ParseLevel("warning") != slog.LevelWarn {
		t.Error("ParseLevel(warning)")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("ParseLevel(bogus) should default to info")
	}
}

func TestNewWithWriterFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(slog.LevelInfo, "json", &buf)
	logger.Info("hello", "component", "compiler")
	if !strings.Contains(buf.String(), `"component":"compiler"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	logger = NewWithWriter(slog.LevelWarn, "text", &buf)
	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info record emitted at warn level: %q", buf.String())
	}
}
