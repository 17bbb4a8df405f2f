package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte(`
service: org.example.Bookmarks
path: /bookmarks
bus_address: unix:path=/run/test-bus
bookmarks: /srv/bookmarks.yaml
mode: async
workers: 4
timeout: 2s
log_level: debug
log_format: json
runner:
  name: bookmarks
  min_letter_count: 2
  match_regex: "^bm "
  trigger_words: [bm, bookmark]
  sort_by_score: true
`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service != "org.example.Bookmarks" {
		t.Errorf("Service = %q", cfg.Service)
	}
	if cfg.Path != "/bookmarks" {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.BusAddress != "unix:path=/run/test-bus" {
		t.Errorf("BusAddress = %q", cfg.BusAddress)
	}
	if cfg.Bookmarks != "/srv/bookmarks.yaml" {
		t.Errorf("Bookmarks = %q", cfg.Bookmarks)
	}
	if cfg.Mode != "async" {
		t.Errorf("Mode = %q, want async", cfg.Mode)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if time.Duration(cfg.Timeout) != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", time.Duration(cfg.Timeout))
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("LogLevel/LogFormat = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	r := cfg.Runner
	if r.Name != "bookmarks" || r.MinLetterCount != 2 || r.MatchRegex != "^bm " || !r.SortByScore {
		t.Errorf("Runner = %+v", r)
	}
	if len(r.TriggerWords) != 2 || r.TriggerWords[1] != "bookmark" {
		t.Errorf("TriggerWords = %v", r.TriggerWords)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte(`
mode: sync
runner:
  min_letter_count: 3
`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "sync" {
		t.Errorf("Mode = %q, want sync", cfg.Mode)
	}
	if cfg.Runner.MinLetterCount != 3 {
		t.Errorf("MinLetterCount = %d, want 3", cfg.Runner.MinLetterCount)
	}
	if cfg.Service != "" || cfg.Workers != 0 || cfg.Timeout != 0 {
		t.Errorf("unset fields not zero: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service != "" || cfg.Runner.Name != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("service: [unterminated\n"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error should mention path, got: %v", err)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("timeout: soon\n"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "soon") {
		t.Errorf("error should mention the bad value, got: %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := DefaultPath(); got != "/custom/config/krunner-bookmarks/config.yaml" {
		t.Errorf("DefaultPath() = %q", got)
	}
	if got := DefaultBookmarksPath(); got != "/custom/config/krunner-bookmarks/bookmarks.yaml" {
		t.Errorf("DefaultBookmarksPath() = %q", got)
	}
}

func TestDefaultPathFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/alice")
	if got := DefaultPath(); got != "/home/alice/.config/krunner-bookmarks/config.yaml" {
		t.Errorf("DefaultPath() = %q", got)
	}
}
