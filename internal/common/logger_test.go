package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitLoggerFileAndConsole(t *testing.T) {
	config := DefaultConfig()
	config.Storage.Path = t.TempDir()
	config.Logging.Output = []string{"stderr", "file"}
	config.Logging.Level = "debug"

	logger := InitLogger(config)
	if logger == nil {
		t.Fatal("Expected a configured logger")
	}
	logger.Info().Str("component", "startup").Msg("logger initialized")

	if _, err := os.Stat(filepath.Join(config.Storage.Path, "logs")); err != nil {
		t.Fatalf("Logs directory not created: %v", err)
	}
}

func TestGetLoggerDefault(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("Expected a default logger before InitLogger runs")
	}
}
