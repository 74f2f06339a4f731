package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable New reads so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvConfigFile, EnvPort, EnvHost, EnvLogLevel, EnvDataDir, EnvStorageDir, EnvWorkers,
		EnvQueueCapacity, EnvJobTimeout, EnvShutdownGrace, EnvYTDLPPath, EnvFFmpegPath,
		EnvFFprobePath, EnvEntitlementURL, EnvEntitlementToken, EnvAPIToken, EnvPublicBaseURL, EnvCORSOrigins,
	} {
		t.Setenv(name, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort || cfg.Host() != DefaultHost || cfg.LogLevel() != "info" {
		t.Errorf("server defaults = %d %s %s", cfg.Port(), cfg.Host(), cfg.LogLevel())
	}
	if cfg.Workers() != 5 || cfg.QueueCapacity() != 100 {
		t.Errorf("workers = %d, capacity = %d", cfg.Workers(), cfg.QueueCapacity())
	}
	if cfg.JobTimeout() != 0 {
		t.Errorf("JobTimeout = %v, want 0", cfg.JobTimeout())
	}
	if !strings.HasSuffix(cfg.DataDir(), DefaultDataDir) {
		t.Errorf("DataDir = %s", cfg.DataDir())
	}
	if cfg.StorageDir() != filepath.Join(cfg.DataDir(), "clips") {
		t.Errorf("StorageDir = %s", cfg.StorageDir())
	}
	if cfg.DBPath() != filepath.Join(cfg.DataDir(), DBFilename) {
		t.Errorf("DBPath = %s", cfg.DBPath())
	}
	if cfg.EntitlementURL() != "" || cfg.APIToken() != "" {
		t.Error("optional integrations should be disabled by default")
	}
	if got := cfg.CORSOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("CORSOrigins = %v, want [*]", got)
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "9090")
	t.Setenv(EnvHost, "127.0.0.1")
	t.Setenv(EnvDataDir, "/srv/clipper")
	t.Setenv(EnvStorageDir, "/mnt/clips")
	t.Setenv(EnvWorkers, "2")
	t.Setenv(EnvJobTimeout, "10m")
	t.Setenv(EnvShutdownGrace, "5")
	t.Setenv(EnvPublicBaseURL, "https://clips.example.com/")
	t.Setenv(EnvCORSOrigins, "https://app.example.com, http://localhost:3000,")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr = %s", cfg.Addr())
	}
	if cfg.StorageDir() != "/mnt/clips" || cfg.WorkDir() != filepath.Join("/srv/clipper", "work") {
		t.Errorf("StorageDir = %s, WorkDir = %s", cfg.StorageDir(), cfg.WorkDir())
	}
	if cfg.Workers() != 2 || cfg.JobTimeout() != 10*time.Minute || cfg.ShutdownGrace() != 5*time.Second {
		t.Errorf("workers = %d, timeout = %v, grace = %v", cfg.Workers(), cfg.JobTimeout(), cfg.ShutdownGrace())
	}
	if cfg.PublicBaseURL() != "https://clips.example.com" {
		t.Errorf("PublicBaseURL = %s", cfg.PublicBaseURL())
	}
	if got := cfg.CORSOrigins(); len(got) != 2 || got[1] != "http://localhost:3000" {
		t.Errorf("CORSOrigins = %v", got)
	}
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		name, env, value string
	}{
		{"non-numeric port", EnvPort, "http"},
		{"port out of range", EnvPort, "70000"},
		{"negative workers", EnvWorkers, "-1"},
		{"bad timeout", EnvJobTimeout, "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.value)
			if _, err := New(); err == nil {
				t.Errorf("New() with %s=%q should fail", tt.env, tt.value)
			}
		})
	}
}

func TestNew_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "clipper.yaml")
	content := `
server:
  port: 8181
  logLevel: debug
  apiToken: ${TEST_CLIPPER_TOKEN}
storage:
  dataDir: ` + dir + `
jobs:
  workers: 3
  queueCapacity: 7
  timeout: 15m
tools:
  ffmpeg: /opt/ffmpeg/bin/ffmpeg
entitlement:
  url: http://accounts.local
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_CLIPPER_TOKEN", "file-token")
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvWorkers, "4")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 8181 || cfg.LogLevel() != "debug" {
		t.Errorf("port = %d, level = %s", cfg.Port(), cfg.LogLevel())
	}
	if cfg.APIToken() != "file-token" {
		t.Errorf("APIToken = %q, want expanded env value", cfg.APIToken())
	}
	if cfg.Workers() != 4 {
		t.Errorf("Workers = %d, env should override file", cfg.Workers())
	}
	if cfg.QueueCapacity() != 7 || cfg.JobTimeout() != 15*time.Minute {
		t.Errorf("capacity = %d, timeout = %v", cfg.QueueCapacity(), cfg.JobTimeout())
	}
	if cfg.FFmpegPath() != "/opt/ffmpeg/bin/ffmpeg" || cfg.EntitlementURL() != "http://accounts.local" {
		t.Errorf("tools/entitlement not read: %s %s", cfg.FFmpegPath(), cfg.EntitlementURL())
	}
	if cfg.StorageDir() != filepath.Join(dir, "clips") {
		t.Errorf("StorageDir = %s", cfg.StorageDir())
	}
}

func TestNew_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := New(); err == nil {
		t.Fatal("New() should fail when the config file is missing")
	}
}
