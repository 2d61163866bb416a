package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Memory.DefaultImportance != 0.5 {
		t.Errorf("expected DefaultImportance=0.5, got %v", cfg.Memory.DefaultImportance)
	}
	if cfg.Memory.DecayRate != 0.99 {
		t.Errorf("expected DecayRate=0.99, got %v", cfg.Memory.DecayRate)
	}
	if cfg.Memory.ArchiveThreshold != 0.2 {
		t.Errorf("expected ArchiveThreshold=0.2, got %v", cfg.Memory.ArchiveThreshold)
	}

	if cfg.Scheduler.CrossProjectStability != 2.0 || cfg.Scheduler.CrossProjectReviews != 2 || cfg.Scheduler.CrossProjectProjects != 2 {
		t.Errorf("unexpected cross-project promotion thresholds: %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.DeepStability != 4.0 || cfg.Scheduler.DeepReviews != 5 {
		t.Errorf("unexpected deep-project promotion thresholds: %+v", cfg.Scheduler)
	}

	if cfg.Dedup.SemanticBuckets != 64 {
		t.Errorf("expected 64 semantic buckets, got %d", cfg.Dedup.SemanticBuckets)
	}

	if !cfg.Server.Enabled || cfg.Server.Port != 3077 {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{name: "valid config", modify: func(c *Config) {}, expectErr: false},
		{name: "empty memory root", modify: func(c *Config) { c.Memory.Root = "" }, expectErr: true},
		{name: "importance out of range", modify: func(c *Config) { c.Memory.DefaultImportance = 1.5 }, expectErr: true},
		{name: "invalid port", modify: func(c *Config) { c.Server.Port = 99999 }, expectErr: true},
		{name: "invalid oracle provider", modify: func(c *Config) { c.Oracle.Provider = "openai" }, expectErr: true},
		{name: "invalid logging level", modify: func(c *Config) { c.Logging.Level = "invalid" }, expectErr: true},
		{name: "zero semantic buckets", modify: func(c *Config) { c.Dedup.SemanticBuckets = 0 }, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error with missing config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config, got nil")
	}
	if cfg.Server.Port != 3077 {
		t.Errorf("expected default port 3077, got %d", cfg.Server.Port)
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
profile: test
memory:
  root: /tmp/test-memories
  default_importance: 0.6
server:
  enabled: true
  port: 4000
  host: 127.0.0.1
  cors: false
logging:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Profile != "test" {
		t.Errorf("expected profile=test, got %s", cfg.Profile)
	}
	if cfg.Memory.Root != "/tmp/test-memories" {
		t.Errorf("expected memory root=/tmp/test-memories, got %s", cfg.Memory.Root)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("expected port=4000, got %d", cfg.Server.Port)
	}
	if cfg.Server.CORS {
		t.Error("expected CORS=false, got true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level=debug, got %s", cfg.Logging.Level)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Memory.Root = filepath.Join(tmpDir, "subdir", "memories")
	cfg.Database.SchedulerPath = filepath.Join(tmpDir, "subdir", "scheduler.db")
	cfg.Database.ClusterPath = filepath.Join(tmpDir, "subdir", "clusters.db")
	cfg.Database.DedupPath = filepath.Join(tmpDir, "subdir", "dedup.db")

	if err := cfg.EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "subdir", "memories")); os.IsNotExist(err) {
		t.Error("memory root was not created")
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}

	homeDir, _ := os.UserHomeDir()
	expected := filepath.Join(homeDir, ".memoryctl")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
