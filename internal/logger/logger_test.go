package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")

	err := Init(Config{
		Debug:     false,
		ConfigDir: configDir,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	logDir := filepath.Join(configDir, "logs")
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		t.Errorf("Log directory was not created: %s", logDir)
	}

	if Logger == nil {
		t.Fatal("Logger is nil after initialization")
	}

	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message", "slot", "reminder-14")
	Error("Test error message")
}

func TestInitWritesWarningsToFile(t *testing.T) {
	configDir := t.TempDir()

	if err := Init(Config{ConfigDir: configDir}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	Info("info is below the default level")
	Warn("reminder registration refused", "slot", "reminder-17")

	data, err := os.ReadFile(filepath.Join(configDir, "logs", "daystreak.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "reminder registration refused") {
		t.Errorf("log file missing warning, got %q", content)
	}
	if strings.Contains(content, "info is below the default level") {
		t.Errorf("log file should not contain info output in normal mode, got %q", content)
	}
}

func TestInitForegroundMode(t *testing.T) {
	err := Init(Config{
		Foreground: true,
		ConfigDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger in foreground mode: %v", err)
	}

	if Logger == nil {
		t.Fatal("Logger is nil after initialization")
	}
	Info("Test info message in foreground mode")
}

func TestInitDebugMode(t *testing.T) {
	err := Init(Config{
		Debug:     true,
		ConfigDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger in debug mode: %v", err)
	}

	if Logger == nil {
		t.Error("Logger is nil after initialization")
	}

	Debug("Test debug message in debug mode")
	Info("Test info message in debug mode")
}

func TestLogFunctionsWithoutInit(t *testing.T) {
	Logger = nil

	// These should not panic when Logger is nil
	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}
