package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.Port != defaultServicePort {
		t.Errorf("port = %d, want %d", cfg.Service.Port, defaultServicePort)
	}
	if cfg.Service.PollInterval != 30*time.Second {
		t.Errorf("poll interval = %v, want 30s", cfg.Service.PollInterval)
	}
	if cfg.Database.Host != defaultDBHost || cfg.Database.Port != defaultDBPort {
		t.Errorf("db defaults missing: %+v", cfg.Database)
	}
	if cfg.Extraction.WindowChars != defaultWindowChars {
		t.Errorf("window chars = %d, want %d", cfg.Extraction.WindowChars, defaultWindowChars)
	}
	if cfg.Resolution.DateToleranceDays != 3 {
		t.Errorf("date tolerance = %d, want 3", cfg.Resolution.DateToleranceDays)
	}
	if cfg.Grading.DecayKind != "exponential" {
		t.Errorf("decay kind = %q, want exponential", cfg.Grading.DecayKind)
	}
	if len(cfg.Grading.TypeWeights) == 0 || len(cfg.Grading.Bands) == 0 {
		t.Error("grading weights and bands must default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Logging.Level)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("BARS_PORT", "9999")
	t.Setenv("POSTGRES_HOST", "db.internal")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.Port != 9999 {
		t.Errorf("port = %d, want env override 9999", cfg.Service.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("db host = %q, want env override", cfg.Database.Host)
	}
}
