// Package config loads searchgrep's layered configuration: built-in
// defaults, then a global YAML file, then a local YAML file, then
// environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables read from config files and env vars.
type Config struct {
	MaxFileSize       int64  `yaml:"maxFileSize" json:"maxFileSize"`
	MaxFileCount      int    `yaml:"maxFileCount" json:"maxFileCount"`
	EmbeddingProvider string `yaml:"embeddingProvider" json:"embeddingProvider"`
	EmbeddingModel    string `yaml:"embeddingModel" json:"embeddingModel"`
	OpenAIAPIKey      string `yaml:"openaiApiKey" json:"openaiApiKey"`
	BaseURL           string `yaml:"baseUrl" json:"baseUrl"`
	LocalEmbeddingURL string `yaml:"localEmbeddingUrl" json:"localEmbeddingUrl"`
}

// New returns a Config populated with the defaults from the schema table.
func New() *Config {
	return &Config{
		MaxFileSize:       10 * 1024 * 1024,
		MaxFileCount:      10000,
		EmbeddingProvider: "openai",
		EmbeddingModel:    "text-embedding-3-small",
		LocalEmbeddingURL: "http://127.0.0.1:11434",
	}
}

// GlobalConfigPath returns ~/.config/searchgrep/config.yaml, honoring
// $XDG_CONFIG_HOME when set.
func GlobalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "searchgrep", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "searchgrep", "config.yaml")
	}
	return filepath.Join(home, ".config", "searchgrep", "config.yaml")
}

// LocalConfigPath returns {dir}/.searchgreprc.yaml.
func LocalConfigPath(dir string) string {
	return filepath.Join(dir, ".searchgreprc.yaml")
}

// DataDir returns the default on-disk location for store files,
// ~/.searchgrep, falling back to a temp directory if the home directory
// can't be resolved.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".searchgrep")
	}
	return filepath.Join(home, ".searchgrep")
}

// Load builds a Config for the given working directory: defaults, then
// the global config file, then the local config file, then environment
// variables, each overriding the last for any field it sets.
func Load(dir string) (*Config, error) {
	cfg := New()

	if globalCfg, err := loadYAMLIfExists(GlobalConfigPath()); err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	} else if globalCfg != nil {
		cfg.mergeWith(globalCfg)
	}

	if localCfg, err := loadYAMLIfExists(LocalConfigPath(dir)); err != nil {
		return nil, fmt.Errorf("failed to load local config: %w", err)
	} else if localCfg != nil {
		cfg.mergeWith(localCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadYAMLIfExists(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &parsed, nil
}

// mergeWith merges non-zero-value fields of other into c.
func (c *Config) mergeWith(other *Config) {
	if other.MaxFileSize != 0 {
		c.MaxFileSize = other.MaxFileSize
	}
	if other.MaxFileCount != 0 {
		c.MaxFileCount = other.MaxFileCount
	}
	if other.EmbeddingProvider != "" {
		c.EmbeddingProvider = other.EmbeddingProvider
	}
	if other.EmbeddingModel != "" {
		c.EmbeddingModel = other.EmbeddingModel
	}
	if other.OpenAIAPIKey != "" {
		c.OpenAIAPIKey = other.OpenAIAPIKey
	}
	if other.BaseURL != "" {
		c.BaseURL = other.BaseURL
	}
	if other.LocalEmbeddingURL != "" {
		c.LocalEmbeddingURL = other.LocalEmbeddingURL
	}
}

// applyEnvOverrides applies the environment variables named in the spec's
// external-interfaces table; these have the highest precedence.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SEARCHGREP_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.MaxFileSize = n
		}
	}
	if v := os.Getenv("SEARCHGREP_MAX_FILE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxFileCount = n
		}
	}
	if v := os.Getenv("SEARCHGREP_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
	if v := os.Getenv("SEARCHGREP_EMBEDDING_PROVIDER"); v != "" {
		c.EmbeddingProvider = v
	}
	if v := os.Getenv("SEARCHGREP_LOCAL_EMBEDDING_URL"); v != "" {
		c.LocalEmbeddingURL = v
	}
}

// Validate checks the configuration for internally-inconsistent values.
func (c *Config) Validate() error {
	if c.MaxFileSize < 0 {
		return fmt.Errorf("maxFileSize must be non-negative, got %d", c.MaxFileSize)
	}
	if c.MaxFileCount < 0 {
		return fmt.Errorf("maxFileCount must be non-negative, got %d", c.MaxFileCount)
	}
	provider := strings.ToLower(c.EmbeddingProvider)
	if provider != "openai" && provider != "local" {
		return fmt.Errorf("embeddingProvider must be 'openai' or 'local', got %q", c.EmbeddingProvider)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file, e.g. to materialize
// a local config with current defaults. No CLI command calls it.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks upward from startDir looking for a `.git` directory
// or an existing local config file, falling back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(LocalConfigPath(currentDir)) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
