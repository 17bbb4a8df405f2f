package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML unmarshalling for human-readable strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// RunnerConfig holds the settings reported to the host through Config().
type RunnerConfig struct {
	Name           string   `yaml:"name"`
	MinLetterCount int      `yaml:"min_letter_count"`
	MatchRegex     string   `yaml:"match_regex"`
	TriggerWords   []string `yaml:"trigger_words"`
	SortByScore    bool     `yaml:"sort_by_score"`
}

// Config is the top-level configuration file structure.
type Config struct {
	Service    string       `yaml:"service"`
	Path       string       `yaml:"path"`
	BusAddress string       `yaml:"bus_address"`
	Bookmarks  string       `yaml:"bookmarks"`
	Mode       string       `yaml:"mode"`
	Workers    int          `yaml:"workers"`
	Timeout    Duration     `yaml:"timeout"`
	LogLevel   string       `yaml:"log_level"`
	LogFormat  string       `yaml:"log_format"`
	Runner     RunnerConfig `yaml:"runner"`
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

// DefaultPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultPath() string {
	dir := configHome()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "krunner-bookmarks", "config.yaml")
}

// DefaultBookmarksPath returns the bookmarks file used when the config names none.
func DefaultBookmarksPath() string {
	dir := configHome()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "krunner-bookmarks", "bookmarks.yaml")
}

// Load reads and parses a YAML config file. If the file does not exist,
// it returns an empty Config and a nil error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}
