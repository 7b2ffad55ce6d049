package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOrDefault(t *testing.T) {
	if got := orDefault(0, 10); got != 10 {
		t.Errorf("orDefault(0, 10) = %d, want 10", got)
	}
	if got := orDefault(-3, 10); got != 10 {
		t.Errorf("orDefault(-3, 10) = %d, want 10", got)
	}
	if got := orDefault(5, 10); got != 5 {
		t.Errorf("orDefault(5, 10) = %d, want 5", got)
	}
}

func TestNewWritesToRotatingFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "askesis.log")
	log := New(Options{Path: path, Level: "debug"})
	log.Info("boot", "habit_id", "h1")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected log file to exist at %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Error("expected the log file to contain the written record")
	}
}

func TestNewWithoutPathFallsBackToStderr(t *testing.T) {
	log := New(Options{Level: "info"})
	if log == nil {
		t.Fatal("expected a non-nil logger when Path is empty")
	}
}
