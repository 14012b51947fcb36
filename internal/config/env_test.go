package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(func(string) string { return "" })
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	env := map[string]string{
		"PRANK_STORE":      "Dynamo",
		"PRANK_POLL_EVERY": "250ms",
		"PRANK_LOG_LEVEL":  "debug",
		"PRANK_LINK":       "?to=Sam",
		"PRANK_DEBUG":      "true",
	}
	cfg := FromEnv(func(k string) string { return env[k] })
	if cfg.Store != StoreDynamo {
		t.Errorf("store = %q", cfg.Store)
	}
	if cfg.PollEvery != 250*time.Millisecond {
		t.Errorf("poll = %v", cfg.PollEvery)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("level = %v", cfg.LogLevel)
	}
	if cfg.Link != "?to=Sam" || !cfg.Debug {
		t.Errorf("unexpected cfg %+v", cfg)
	}
}

func TestFromEnvIgnoresBadValues(t *testing.T) {
	env := map[string]string{
		"PRANK_POLL_EVERY": "soon",
		"PRANK_LOG_LEVEL":  "loud",
	}
	cfg := FromEnv(func(k string) string { return env[k] })
	if cfg.PollEvery != time.Second || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("bad values should keep defaults, got %+v", cfg)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("PRANK_TEST_LOAD_STORE=ws\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRANK_TEST_LOAD_STORE", "")
	os.Unsetenv("PRANK_TEST_LOAD_STORE")
	Load(path)
	if got := os.Getenv("PRANK_TEST_LOAD_STORE"); got != "ws" {
		t.Fatalf("expected env file to be loaded, got %q", got)
	}
}
