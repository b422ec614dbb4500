package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the complete loader configuration. Field names follow the
// compiler's own option names where one exists.
type Config struct {
	// Context is the directory diagnostic paths are reported relative to.
	Context        string         `yaml:"context,omitempty" toml:"context"`
	Src            []string       `yaml:"src,omitempty" toml:"src"`
	Output         string         `yaml:"output,omitempty" toml:"output"`
	PackageManager PackageManager `yaml:"package_manager,omitempty" toml:"package_manager"`
	Warnings       bool           `yaml:"warnings" toml:"warnings"`
	Watch          bool           `yaml:"watch" toml:"watch"`
	SourceMaps     bool           `yaml:"source_maps" toml:"source_maps"`
	// StrictRebuild rejects requests whose rebuild reported errors instead of
	// resolving them with the diagnostic recorded.
	StrictRebuild bool `yaml:"strict_rebuild" toml:"strict_rebuild"`

	Compiler CompilerConfig `yaml:"compiler" toml:"compiler"`
	Bundle   BundleConfig   `yaml:"bundle" toml:"bundle"`
	IDE      IDEConfig      `yaml:"ide" toml:"ide"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty" toml:"metrics"`
	Notify   NotifyConfig   `yaml:"notify,omitempty" toml:"notify"`
	History  HistoryConfig  `yaml:"history,omitempty" toml:"history"`
}

// CompilerConfig describes the batch compiler invocation.
type CompilerConfig struct {
	Command string         `yaml:"command,omitempty" toml:"command"`
	Args    map[string]any `yaml:"args,omitempty" toml:"args"`
}

// BundleConfig describes the optional bundler run after a batch cycle.
type BundleConfig struct {
	Enabled   bool           `yaml:"enabled" toml:"enabled"`
	Command   string         `yaml:"command,omitempty" toml:"command"`
	Args      map[string]any `yaml:"args,omitempty" toml:"args"`
	Output    string         `yaml:"output,omitempty" toml:"output"`
	Namespace string         `yaml:"namespace,omitempty" toml:"namespace"`
}

// IDEConfig describes the persistent IDE server and its per-exchange client.
type IDEConfig struct {
	Enabled       bool             `yaml:"enabled" toml:"enabled"`
	ServerCommand string           `yaml:"server_command,omitempty" toml:"server_command"`
	ServerArgs    map[string]any   `yaml:"server_args,omitempty" toml:"server_args"`
	ClientCommand string           `yaml:"client_command,omitempty" toml:"client_command"`
	ClientArgs    map[string]any   `yaml:"client_args,omitempty" toml:"client_args"`
	RebuildParams map[string]any   `yaml:"rebuild_params,omitempty" toml:"rebuild_params"`
	Colors        ColorMode        `yaml:"colors,omitempty" toml:"colors"`
	LoadAttempts  int              `yaml:"load_attempts,omitempty" toml:"load_attempts"`
	LoadDelay     string           `yaml:"load_delay,omitempty" toml:"load_delay"`
	RetryBackoff  RetryBackoffMode `yaml:"retry_backoff,omitempty" toml:"retry_backoff"`
	// KeepaliveInterval enables a periodic server liveness probe in watch mode.
	KeepaliveInterval string `yaml:"keepalive_interval,omitempty" toml:"keepalive_interval"`
}

// MetricsConfig enables the Prometheus endpoint in watch mode.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty" toml:"listen"`
}

// NotifyConfig enables publishing cycle summaries to NATS.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty" toml:"nats_url"`
	Subject string `yaml:"subject,omitempty" toml:"subject"`
}

// HistoryConfig enables the SQLite build-cycle event log.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty" toml:"path"`
}

// Load loads configuration from the specified file. YAML is assumed unless
// the file ends in .toml. Unset keys keep their Default values.
func Load(configPath string) (*Config, error) {
	// A missing .env is not an error.
	_ = loadEnvFile()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(configPath, []byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file does not exist.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		_ = loadEnvFile()
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return Load(configPath)
}

// Parse decodes raw configuration bytes on top of Default.
func Parse(name string, data []byte) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	cfg.normalize()
	return cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Default()
	example.Bundle.Enabled = true
	example.IDE.KeepaliveInterval = "30s"
	example.Compiler.Args = map[string]any{"censorCodes": "ImplicitImport"}
	example.Metrics.Listen = ":9464"
	example.History.Path = ".pursloader/history.db"

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
