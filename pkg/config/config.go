package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const envConfigPath = "PAGELENS_CONFIG"

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Bus       BusConfig       `json:"bus"`
	Providers ProvidersConfig `json:"providers"`
	Store     StoreConfig     `json:"store"`
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// BusConfig tunes the message-passing layer.
type BusConfig struct {
	DefaultTimeoutMs int `json:"default_timeout_ms"`
}

// ProvidersConfig stores per-backend connection settings.
type ProvidersConfig struct {
	Gemini GeminiProviderConfig `json:"gemini"`
	OpenAI OpenAIProviderConfig `json:"openai"`
}

// GeminiProviderConfig configures the Gemini backend class.
type GeminiProviderConfig struct {
	BaseURL               string `json:"base_url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// OpenAIProviderConfig configures the optional OpenAI backend.
type OpenAIProviderConfig struct {
	Enabled               bool   `json:"enabled"`
	Model                 string `json:"model"`
	BaseURL               string `json:"base_url"`
	APIKeyEnv             string `json:"api_key_env"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// StoreConfig locates the persistent key-value database.
type StoreConfig struct {
	Path string `json:"path"`
}

// ServerConfig configures the background daemon's bind address.
type ServerConfig struct {
	Host string `json:"host"`
	URL  string `json:"url,omitempty"`
	Port int    `json:"port"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// Default returns the compiled-in configuration used when no config file
// exists yet.
func Default() *Config {
	return &Config{
		Bus: BusConfig{DefaultTimeoutMs: 15000},
		Providers: ProvidersConfig{
			Gemini: GeminiProviderConfig{RequestTimeoutSeconds: 60},
			OpenAI: OpenAIProviderConfig{Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY", RequestTimeoutSeconds: 60},
		},
		Store:  StoreConfig{Path: defaultStorePath()},
		Server: ServerConfig{Host: "127.0.0.1", Port: 18890},
	}
}

// LoadConfig resolves config.json and unmarshals it on top of the
// defaults. A missing file is not an error; an explicitly pointed-to but
// unreadable one is.
func LoadConfig() (*Config, error) {
	cfg := Default()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// ServerURL returns the address clients use to reach the background
// daemon.
func (c *Config) ServerURL() string {
	if url := strings.TrimSpace(c.Server.URL); url != "" {
		return url
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Server.Port
	if port <= 0 {
		port = 18890
	}

	return fmt.Sprintf("http://%s:%d", host, port)
}

// findConfigPath resolves the active config file location.
//
// Precedence is PAGELENS_CONFIG first, then cwd-local fallback paths. An
// empty return means no file exists and defaults apply.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pagelens.db"
	}

	return filepath.Join(home, ".pagelens", "pagelens.db")
}
