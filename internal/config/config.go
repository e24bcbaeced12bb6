// Package config handles configuration and signing-key management for streamchat.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variables that override values from the config file
const (
	EnvServer = "STREAMCHAT_SERVER"
	EnvKey    = "STREAMCHAT_KEY"
	EnvModel  = "STREAMCHAT_MODEL"
)

const (
	dirName        = ".streamchat"
	configFileName = "config.json"
	keysDirName    = "keys"
	logFileName    = "streamchat.log"

	// DefaultServerURL matches the local inference server the client was built for.
	DefaultServerURL = "http://localhost:8000"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style"`              // "dark", "light", "notty" or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji"`       // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"`  // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap"`         // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links"` // Render links inline in tables
}

// Config represents the user configuration
type Config struct {
	ServerURL    string `json:"server_url"`
	DefaultModel string `json:"default_model,omitempty"`

	// KeyPath points at the PEM private key used to sign request tokens.
	// Empty means <config dir>/keys/client.pem.
	KeyPath string `json:"key_path,omitempty"`
	KeyID   string `json:"key_id,omitempty"`
	Issuer  string `json:"issuer,omitempty"`
	Subject string `json:"subject,omitempty"`
	// TokenTTL is the lifetime of a signed token in seconds.
	TokenTTL int `json:"token_ttl"`

	// StreamTimeout bounds a whole exchange in seconds. 0 disables the deadline.
	StreamTimeout int `json:"stream_timeout"`
	// TrimLeadingSpace strips leading whitespace from the start of each reply.
	TrimLeadingSpace bool `json:"trim_leading_space"`

	Verbose         bool           `json:"verbose"`
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	Markdown        MarkdownConfig `json:"markdown,omitempty"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		ServerURL:        DefaultServerURL,
		Issuer:           "streamchat",
		TokenTTL:         3600,
		StreamTimeout:    0,
		TrimLeadingSpace: true,
		Verbose:          false,
		CopyToClipboard:  false,
		Markdown:         DefaultMarkdownConfig(),
	}
}

// TokenLifetime returns TokenTTL as a duration, falling back to one hour.
func (c Config) TokenLifetime() time.Duration {
	if c.TokenTTL <= 0 {
		return time.Hour
	}
	return time.Duration(c.TokenTTL) * time.Second
}

// StreamDeadline returns StreamTimeout as a duration (0 means none).
func (c Config) StreamDeadline() time.Duration {
	if c.StreamTimeout <= 0 {
		return 0
	}
	return time.Duration(c.StreamTimeout) * time.Second
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory holds the signing key
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFileName), nil
}

// GetLogPath returns the path of the log file used by the chat TUI
func GetLogPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, logFileName), nil
}

// LoadConfig loads the configuration from disk and applies environment overrides
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			cfg = DefaultConfig()
			applyEnv(&cfg)
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvServer); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvKey); v != "" {
		cfg.KeyPath = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.DefaultModel = v
	}
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, configFileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SettableKeys lists the config keys accepted by Set, in display order.
func SettableKeys() []string {
	return []string{
		"server_url",
		"default_model",
		"key_path",
		"key_id",
		"issuer",
		"subject",
		"token_ttl",
		"stream_timeout",
		"trim_leading_space",
		"verbose",
		"copy_to_clipboard",
		"markdown.style",
	}
}

// Set assigns a single config value from its string form.
func (c *Config) Set(key, value string) error {
	switch key {
	case "server_url":
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("server_url must start with http:// or https://")
		}
		c.ServerURL = strings.TrimRight(value, "/")
	case "default_model":
		c.DefaultModel = value
	case "key_path":
		c.KeyPath = value
	case "key_id":
		c.KeyID = value
	case "issuer":
		c.Issuer = value
	case "subject":
		c.Subject = value
	case "token_ttl", "stream_timeout":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative number of seconds", key)
		}
		if key == "token_ttl" {
			c.TokenTTL = n
		} else {
			c.StreamTimeout = n
		}
	case "trim_leading_space", "verbose", "copy_to_clipboard":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false", key)
		}
		switch key {
		case "trim_leading_space":
			c.TrimLeadingSpace = b
		case "verbose":
			c.Verbose = b
		default:
			c.CopyToClipboard = b
		}
	case "markdown.style":
		c.Markdown.Style = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// Get returns the string form of a single config value.
func (c Config) Get(key string) (string, error) {
	switch key {
	case "server_url":
		return c.ServerURL, nil
	case "default_model":
		return c.DefaultModel, nil
	case "key_path":
		return c.KeyPath, nil
	case "key_id":
		return c.KeyID, nil
	case "issuer":
		return c.Issuer, nil
	case "subject":
		return c.Subject, nil
	case "token_ttl":
		return strconv.Itoa(c.TokenTTL), nil
	case "stream_timeout":
		return strconv.Itoa(c.StreamTimeout), nil
	case "trim_leading_space":
		return strconv.FormatBool(c.TrimLeadingSpace), nil
	case "verbose":
		return strconv.FormatBool(c.Verbose), nil
	case "copy_to_clipboard":
		return strconv.FormatBool(c.CopyToClipboard), nil
	case "markdown.style":
		return c.Markdown.Style, nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}
