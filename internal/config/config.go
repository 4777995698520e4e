package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint       = "ws://localhost:8080"
	DefaultAPIURL         = "http://localhost:8081"
	DefaultDialTimeout    = "5s"
	DefaultInitialBackoff = "1s"
	DefaultMaxBackoff     = "60s"
	DefaultMergePolicy    = "patch"
	DefaultLogLevel       = "info"
)

// Config represents the blitzdash configuration
type Config struct {
	Endpoint      string    `yaml:"endpoint" json:"endpoint"`
	APIURL        string    `yaml:"api_url" json:"api_url"`
	DialTimeout   string    `yaml:"dial_timeout" json:"dial_timeout"`
	Reconnect     Reconnect `yaml:"reconnect" json:"reconnect"`
	MergePolicy   string    `yaml:"merge_policy" json:"merge_policy"`
	Notifications bool      `yaml:"notifications" json:"notifications"`
	LogFile       string    `yaml:"log_file,omitempty" json:"log_file,omitempty"`
	LogLevel      string    `yaml:"log_level" json:"log_level"`
	SessionFile   string    `yaml:"session_file,omitempty" json:"session_file,omitempty"`
	History       *History  `yaml:"history,omitempty" json:"history,omitempty"`
}

// Reconnect controls how the status channel recovers from a lost connection
type Reconnect struct {
	Enabled        *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	InitialBackoff string `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff" json:"max_backoff"`
	MaxAttempts    int    `yaml:"max_attempts" json:"max_attempts"` // reconnect attempts in a row after a failure, 0 retries forever
}

// IsEnabled reports whether reconnecting is on. Unset means on.
func (r Reconnect) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// History points at an optional GreptimeDB instance that stores status transitions
type History struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
	Table    string `yaml:"table,omitempty" json:"table,omitempty"`
}

// Default returns a config with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in every unset field
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.DialTimeout == "" {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Reconnect.Enabled == nil {
		enabled := true
		c.Reconnect.Enabled = &enabled
	}
	if c.Reconnect.InitialBackoff == "" {
		c.Reconnect.InitialBackoff = DefaultInitialBackoff
	}
	if c.Reconnect.MaxBackoff == "" {
		c.Reconnect.MaxBackoff = DefaultMaxBackoff
	}
	if c.MergePolicy == "" {
		c.MergePolicy = DefaultMergePolicy
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// GetConfigDir returns the directory holding the config, log and session files
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "blitzdash"), nil
}

// GetConfigPath returns the path to the global config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// LogFilePath returns the configured log file, defaulting to blitzdash.log next to the config
func (c *Config) LogFilePath() (string, error) {
	if c.LogFile != "" {
		return c.LogFile, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "blitzdash.log"), nil
}

// SessionFilePath returns the configured session token file, defaulting to session next to the config
func (c *Config) SessionFilePath() (string, error) {
	if c.SessionFile != "" {
		return c.SessionFile, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session"), nil
}

// InitConfig creates the config directory and file with default content
func InitConfig(force bool) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig reads, defaults and validates the global config file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile reads, defaults and validates the config file at path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Endpoint = ResolveEnv(cfg.Endpoint)
	cfg.APIURL = ResolveEnv(cfg.APIURL)
	if cfg.History != nil {
		cfg.History.Endpoint = ResolveEnv(cfg.History.Endpoint)
	}

	cfg.ApplyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// InitConfigFrom writes cfg as the global config file. Like InitConfig it
// refuses to overwrite an existing file unless force is set.
func InitConfigFrom(cfg *Config, force bool) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	return SaveConfig(cfg)
}

// SaveConfig validates the config and writes it to the global config file
func SaveConfig(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getDefaultConfig returns the default configuration as YAML
func getDefaultConfig() string {
	return fmt.Sprintf(`# Blitzdash Configuration
# Status Source pushing service status frames
endpoint: %s
# Node API used for receive and send
api_url: %s
dial_timeout: %s

reconnect:
  enabled: true
  initial_backoff: %s
  max_backoff: %s
  max_attempts: 0 # reconnect attempts in a row after a failure, 0 retries forever

# patch: services missing from a snapshot keep their last status
# replace: every snapshot is the full list of services
merge_policy: %s

notifications: false
log_level: %s

# Record status transitions in GreptimeDB
# history:
#   endpoint: localhost:4001
#   database: public
#   table: service_status
`, DefaultEndpoint, DefaultAPIURL, DefaultDialTimeout, DefaultInitialBackoff, DefaultMaxBackoff, DefaultMergePolicy, DefaultLogLevel)
}

// ResolveEnv replaces environment variable placeholders with actual values
// Supports ${VAR_NAME} syntax
func ResolveEnv(value string) string {
	return os.ExpandEnv(strings.NewReplacer(
		"${", "$",
		"}", "",
	).Replace(value))
}
