package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nyanpass/panel/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestSetup_FileOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "panel.log")
	closer, err := Setup(config.LogConfig{Level: "debug", Format: "json", File: file})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})

	log.WithField("order_no", "NP1").Debug("hello")
	if errClose := closer.Close(); errClose != nil {
		t.Fatalf("close: %v", errClose)
	}
	data, errRead := os.ReadFile(file)
	if errRead != nil {
		t.Fatalf("read log: %v", errRead)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain output")
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
}

func TestSetup_InvalidLevel(t *testing.T) {
	if _, err := Setup(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}
