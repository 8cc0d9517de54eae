// Package config loads and validates the dochub run configuration.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	dherrors "git.home.luguber.info/inful/dochub/internal/errors"
)

// Config represents the application configuration
type Config struct {
	// PackagesDir is the directory scanned for package manifests.
	PackagesDir string `yaml:"packages_dir"`
	// ExtraPackages lists additional package directories outside packages_dir.
	ExtraPackages []string `yaml:"extra_packages,omitempty"`

	Compiler   CompilerConfig   `yaml:"compiler"`
	Build      BuildConfig      `yaml:"build"`
	Hub        HubConfig        `yaml:"hub"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Events     EventsConfig     `yaml:"events"`
	Daemon     DaemonConfig     `yaml:"daemon"`
}

// CompilerConfig describes how the external documentation compiler is invoked.
type CompilerConfig struct {
	// Binary is the compiler executable name or path (resolved via PATH).
	Binary string `yaml:"binary"`
	// Args are extra arguments appended to every invocation.
	Args []string `yaml:"args,omitempty"`
	// ConfigFile is the per-package compiler configuration file name,
	// expected inside each package's docs source directory.
	ConfigFile string `yaml:"config_file,omitempty"`
	// TimeoutSeconds bounds a single invocation; 0 uses the default.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
	// GraceSeconds is the wait between SIGTERM and SIGKILL on timeout or abort.
	GraceSeconds int `yaml:"grace_seconds,omitempty"`
}

// Timeout returns the invocation timeout as a duration.
func (c CompilerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Grace returns the termination grace period as a duration.
func (c CompilerConfig) Grace() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

// BuildConfig holds build tuning knobs.
type BuildConfig struct {
	// MaxParallel caps concurrent compiler invocations within a wave.
	// Defaults to the number of CPU cores; values <1 are coerced to 1.
	MaxParallel int `yaml:"max_parallel,omitempty"`
	// ReportPath is where the JSON build report is persisted.
	ReportPath string `yaml:"report_path,omitempty"`
	// HistoryDB is the SQLite database recording past runs. Empty disables history.
	HistoryDB string `yaml:"history_db,omitempty"`
}

// HubConfig controls assembly of the cross-linked documentation hub.
type HubConfig struct {
	// Disabled skips hub assembly entirely (equivalent to --no-hub).
	Disabled bool `yaml:"disabled,omitempty"`
	// Dir is the hub collection directory; package artifacts land under
	// <dir>/packages/<name>.
	Dir string `yaml:"dir,omitempty"`
	// Title is the hub index page title.
	Title string `yaml:"title,omitempty"`
}

// PatternRule maps free-text compiler output to a failure category.
// Substrings are matched case-insensitively; regexes use Go syntax.
type PatternRule struct {
	Category   string   `yaml:"category"`
	Substrings []string `yaml:"substrings,omitempty"`
	Regexes    []string `yaml:"regexes,omitempty"`
}

// ClassifierConfig extends the built-in failure pattern table.
// Rules are checked before the compiled-in defaults so operators can
// reclassify new compiler-version error strings without a code change.
type ClassifierConfig struct {
	Patterns []PatternRule `yaml:"patterns,omitempty"`
}

// MetricsConfig enables Prometheus metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// EventsConfig enables NATS build-event publishing.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig controls watch mode.
type DaemonConfig struct {
	// IntervalSeconds between periodic rebuilds; 0 disables the timer.
	IntervalSeconds int `yaml:"interval_seconds,omitempty"`
	// Watch rebuilds when a package manifest changes.
	Watch bool `yaml:"watch,omitempty"`
	// MetricsListen is the address for the /metrics endpoint (daemon only).
	MetricsListen string `yaml:"metrics_listen,omitempty"`
}

// Interval returns the rebuild interval as a duration.
func (d DaemonConfig) Interval() time.Duration {
	return time.Duration(d.IntervalSeconds) * time.Second
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env if present; absence is not an error.
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, dherrors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, dherrors.Wrap(err, dherrors.CategoryConfig, dherrors.SeverityFatal, "failed to parse configuration").
			WithContext("path", configPath)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.PackagesDir == "" {
		c.PackagesDir = "packages"
	}
	if c.Compiler.Binary == "" {
		c.Compiler.Binary = "doccompile"
	}
	if c.Compiler.ConfigFile == "" {
		c.Compiler.ConfigFile = "docs.yaml"
	}
	if c.Compiler.TimeoutSeconds <= 0 {
		c.Compiler.TimeoutSeconds = 600
	}
	if c.Compiler.GraceSeconds <= 0 {
		c.Compiler.GraceSeconds = 10
	}
	if c.Build.MaxParallel < 1 {
		c.Build.MaxParallel = runtime.NumCPU()
	}
	if c.Build.ReportPath == "" {
		c.Build.ReportPath = "build-report.json"
	}
	if c.Hub.Dir == "" {
		c.Hub.Dir = "hub"
	}
	if c.Hub.Title == "" {
		c.Hub.Title = "Documentation Hub"
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "dochub.builds"
	}
	if c.Daemon.IntervalSeconds < 0 {
		c.Daemon.IntervalSeconds = 0
	}
	if c.Daemon.MetricsListen == "" {
		c.Daemon.MetricsListen = ":9180"
	}
}

// Validate rejects configurations that cannot produce a coherent run.
func (c *Config) Validate() error {
	if c.PackagesDir == "" {
		return dherrors.ValidationFailed("packages_dir", "must not be empty")
	}
	if c.Compiler.Binary == "" {
		return dherrors.ValidationFailed("compiler.binary", "must not be empty")
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return dherrors.ValidationFailed("events.url", "required when events are enabled")
	}
	for i, rule := range c.Classifier.Patterns {
		if rule.Category == "" {
			return dherrors.ValidationFailed(
				fmt.Sprintf("classifier.patterns[%d].category", i), "must not be empty")
		}
	}
	return nil
}
