package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/tessro/cadence/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"", logrus.InfoLevel},
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		logger, closer, err := New(config.LogConfig{Level: tt.level})
		if err != nil {
			t.Fatalf("New(%q) error = %v", tt.level, err)
		}
		if logger.GetLevel() != tt.want {
			t.Errorf("New(%q) level = %v, want %v", tt.level, logger.GetLevel(), tt.want)
		}
		_ = closer.Close()
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("New() expected error for invalid level")
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cadence.log")

	logger, closer, err := New(config.LogConfig{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.WithField("track", "Papaoutai").Info("Track loaded")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"track":"Papaoutai"`) || !strings.Contains(out, `"msg":"Track loaded"`) {
		t.Errorf("log output = %q", out)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("dropped")
	if logger.GetLevel() != logrus.PanicLevel {
		t.Errorf("Discard() level = %v", logger.GetLevel())
	}
}
