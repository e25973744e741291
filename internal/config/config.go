// ABOUTME: Configuration loading and parsing for wazuh-mcp
// ABOUTME: Supports YAML, TOML and JSONC files, ${VAR} expansion, and WAZUH_* environment overrides

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete wazuh-mcp configuration
type Config struct {
	Wazuh   WazuhConfig   `yaml:"wazuh" toml:"wazuh" json:"wazuh"`
	Indexer IndexerConfig `yaml:"indexer" toml:"indexer" json:"indexer"`
	Server  ServerConfig  `yaml:"server" toml:"server" json:"server"`
	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
	Audit   AuditConfig   `yaml:"audit" toml:"audit" json:"audit"`
}

// WazuhConfig holds the manager API connection
type WazuhConfig struct {
	Protocol  string `yaml:"protocol" toml:"protocol" json:"protocol"`
	Host      string `yaml:"host" toml:"host" json:"host"`
	Port      int    `yaml:"port" toml:"port" json:"port"`
	Username  string `yaml:"username" toml:"username" json:"username"`
	Password  string `yaml:"password" toml:"password" json:"password"`
	VerifySSL bool   `yaml:"verify_ssl" toml:"verify_ssl" json:"verify_ssl"`

	Timeout    time.Duration `yaml:"-" toml:"-" json:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// IndexerConfig holds the indexer connection. Protocol and certificate
// verification follow the manager settings.
type IndexerConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Host     string `yaml:"host" toml:"host" json:"host"`
	Port     int    `yaml:"port" toml:"port" json:"port"`
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
	Index    string `yaml:"index" toml:"index" json:"index"`
}

// ServerConfig holds MCP server behavior
type ServerConfig struct {
	EnablePrompts   bool `yaml:"enable_prompts" toml:"enable_prompts" json:"enable_prompts"`
	EnableResources bool `yaml:"enable_resources" toml:"enable_resources" json:"enable_resources"`

	// ToolTimeout bounds a single tools/call; zero disables the deadline.
	ToolTimeout    time.Duration `yaml:"-" toml:"-" json:"-"`
	ToolTimeoutRaw string        `yaml:"tool_timeout" toml:"tool_timeout" json:"tool_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"` // text, json or auto
}

// AuditConfig holds the tool call audit log location; empty disables it
type AuditConfig struct {
	Path string `yaml:"path" toml:"path" json:"path"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Wazuh: WazuhConfig{
			Protocol: "https",
			Host:     "localhost",
			Port:     55000,
			Username: "wazuh",
			Password: "wazuh",
			Timeout:  30 * time.Second,
		},
		Indexer: IndexerConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     9200,
			Username: "admin",
			Password: "admin",
			Index:    "wazuh-alerts-*",
		},
		Server: ServerConfig{
			ToolTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the file at path (if path
// is not empty), then environment overrides, then validation.
// Environment variables in the format ${VAR_NAME} are expanded in the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFile decodes path over cfg, choosing the format by extension.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal([]byte(expanded), cfg)
	case ".toml":
		_, err = toml.Decode(expanded, cfg)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON([]byte(expanded)), cfg)
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Wazuh.TimeoutRaw != "" {
		cfg.Wazuh.Timeout, err = time.ParseDuration(cfg.Wazuh.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing wazuh.timeout %q: %w", cfg.Wazuh.TimeoutRaw, err)
		}
	}

	if cfg.Server.ToolTimeoutRaw != "" {
		cfg.Server.ToolTimeout, err = time.ParseDuration(cfg.Server.ToolTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing server.tool_timeout %q: %w", cfg.Server.ToolTimeoutRaw, err)
		}
	}

	return nil
}

// applyEnv overlays the WAZUH_* and LOG_LEVEL variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"WAZUH_PROTOCOL", &cfg.Wazuh.Protocol},
		{"WAZUH_API_HOST", &cfg.Wazuh.Host},
		{"WAZUH_API_USERNAME", &cfg.Wazuh.Username},
		{"WAZUH_API_PASSWORD", &cfg.Wazuh.Password},
		{"WAZUH_INDEXER_HOST", &cfg.Indexer.Host},
		{"WAZUH_INDEXER_USERNAME", &cfg.Indexer.Username},
		{"WAZUH_INDEXER_PASSWORD", &cfg.Indexer.Password},
		{"WAZUH_INDEXER_INDEX", &cfg.Indexer.Index},
		{"WAZUH_MCP_AUDIT_PATH", &cfg.Audit.Path},
		{"LOG_LEVEL", &cfg.Logging.Level},
	}
	for _, s := range strs {
		if value, ok := lookup(s.name); ok && value != "" {
			*s.dst = value
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"WAZUH_API_PORT", &cfg.Wazuh.Port},
		{"WAZUH_INDEXER_PORT", &cfg.Indexer.Port},
	}
	for _, i := range ints {
		value, ok := lookup(i.name)
		if !ok || value == "" {
			continue
		}
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not a port number", i.name, value)
		}
		*i.dst = port
	}

	if value, ok := lookup("WAZUH_VERIFY_SSL"); ok && value != "" {
		cfg.Wazuh.VerifySSL = strings.EqualFold(value, "true")
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Wazuh.Protocol != "http" && c.Wazuh.Protocol != "https" {
		return fmt.Errorf("%w: wazuh.protocol must be http or https, got %q", ErrInvalid, c.Wazuh.Protocol)
	}
	if c.Wazuh.Host == "" {
		return fmt.Errorf("%w: wazuh.host is required", ErrInvalid)
	}
	if err := validPort("wazuh.port", c.Wazuh.Port); err != nil {
		return err
	}
	if c.Wazuh.Username == "" {
		return fmt.Errorf("%w: wazuh.username is required", ErrInvalid)
	}
	if c.Wazuh.Timeout <= 0 {
		return fmt.Errorf("%w: wazuh.timeout must be positive", ErrInvalid)
	}

	if c.Indexer.Enabled {
		if c.Indexer.Host == "" {
			return fmt.Errorf("%w: indexer.host is required when the indexer is enabled", ErrInvalid)
		}
		if err := validPort("indexer.port", c.Indexer.Port); err != nil {
			return err
		}
	}

	if c.Server.ToolTimeout < 0 {
		return fmt.Errorf("%w: server.tool_timeout must not be negative", ErrInvalid)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: logging.level %q is not one of debug, info, warn, error", ErrInvalid, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json", "auto":
	default:
		return fmt.Errorf("%w: logging.format %q is not one of text, json, auto", ErrInvalid, c.Logging.Format)
	}

	return nil
}

func validPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %s must be between 1 and 65535, got %d", ErrInvalid, field, port)
	}
	return nil
}

// ManagerURL is the base URL of the manager API.
func (c *Config) ManagerURL() string {
	return c.Wazuh.Protocol + "://" + net.JoinHostPort(c.Wazuh.Host, strconv.Itoa(c.Wazuh.Port))
}

// IndexerURL is the base URL of the indexer.
func (c *Config) IndexerURL() string {
	return c.Wazuh.Protocol + "://" + net.JoinHostPort(c.Indexer.Host, strconv.Itoa(c.Indexer.Port))
}

// ResolvePath picks the config file: the explicit flag value, then
// WAZUH_MCP_CONFIG, then $XDG_CONFIG_HOME/wazuh-mcp/config.yaml when it
// exists. An empty result means no file.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("WAZUH_MCP_CONFIG"); env != "" {
		return env
	}

	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	candidate := filepath.Join(dir, "wazuh-mcp", "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
