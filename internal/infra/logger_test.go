package infra

import (
	"os"
	"path/filepath"
	"testing"
)

// chdir changes the working directory for the duration of the test,
// matching t.Chdir from newer Go releases not available on this toolchain.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

func TestNewLoggerWritesNamedFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg := &Config{}
	cfg.App.Name = "finex_go"
	cfg.Logging.Level = "debug"

	logger := NewLogger(cfg)
	logger.Info("startup check")

	if _, err := os.Stat(filepath.Join("logs", "finex_go.log")); err != nil {
		t.Fatalf("expected log file named after the app: %v", err)
	}
}

func TestNewLoggerDefaultName(t *testing.T) {
	chdir(t, t.TempDir())

	cfg := &Config{}
	logger := NewLogger(cfg)
	logger.Info("startup check")

	if _, err := os.Stat(filepath.Join("logs", "finex_go.log")); err != nil {
		t.Fatalf("expected fallback log file: %v", err)
	}
}
