// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for pseudo configuration.
	DefaultConfigDir = ".pseudo"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultStoreFile is the default mapping store file name.
	DefaultStoreFile = "mappings.db"
	// DefaultEnvFile is loaded from the base path before env overrides apply.
	DefaultEnvFile = ".env"
)

// Environment variables read by applyEnvOverrides.
const (
	EnvPassphrase = "PSEUDO_PASSPHRASE"
	EnvAPIKey     = "OPENAI_API_KEY"
	EnvLogLevel   = "PSEUDO_LOG_LEVEL"
	EnvStorePath  = "PSEUDO_STORE_PATH"
)

var validate = validator.New()

// Config holds static configuration (read-only after init).
type Config struct {
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	Crypto     CryptoConfig     `yaml:"crypto"`
	Processing ProcessingConfig `yaml:"processing"`
	LLM        LLMConfig        `yaml:"llm,omitempty"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`

	// Passphrase is only ever taken from the environment.
	Passphrase string `yaml:"-"`
}

// SQLiteConfig holds configuration for the mapping store file.
type SQLiteConfig struct {
	// Path is the store file. Relative paths resolve against the base path.
	Path string `yaml:"path" validate:"required"`
}

// CryptoConfig holds key-derivation settings.
type CryptoConfig struct {
	// KDFIterations is raised to the creation floor when lower.
	KDFIterations int `yaml:"kdf_iterations" validate:"gte=1000"`
}

// ProcessingConfig holds defaults for document processing runs.
type ProcessingConfig struct {
	Theme            string   `yaml:"theme" validate:"oneof=neutral star_wars lotr"`
	Workers          int      `yaml:"workers" validate:"gte=1,lte=64"`
	EntityTypes      []string `yaml:"entity_types,omitempty" validate:"dive,oneof=PERSON LOCATION ORG"`
	SkipValidation   bool     `yaml:"skip_validation,omitempty"`
	OutputDir        string   `yaml:"output_dir,omitempty"`
	Recognizer       string   `yaml:"recognizer" validate:"oneof=sidecar llm"`
	GenderClassifier string   `yaml:"gender_classifier" validate:"oneof=dictionary llm"`
}

// LLMConfig holds configuration for the OpenAI-compatible provider.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// MetricsConfig configures the node-exporter textfile output.
type MetricsConfig struct {
	// Textfile is written after each command when set.
	Textfile string `yaml:"textfile,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		SQLite: SQLiteConfig{
			Path: filepath.Join(DefaultConfigDir, DefaultStoreFile),
		},
		Crypto: CryptoConfig{
			KDFIterations: 600_000,
		},
		Processing: ProcessingConfig{
			Theme:            "neutral",
			Workers:          1,
			EntityTypes:      []string{"PERSON", "LOCATION", "ORG"},
			Recognizer:       "sidecar",
			GenderClassifier: "dictionary",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the .pseudo directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'pseudo init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadEnvFile(basePath); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile loads <basePath>/.env without overriding variables already set.
func loadEnvFile(basePath string) error {
	err := godotenv.Load(filepath.Join(basePath, DefaultEnvFile))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading env file: %w", err)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv(EnvPassphrase); p != "" {
		c.Passphrase = p
	}
	if key := os.Getenv(EnvAPIKey); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if path := os.Getenv(EnvStorePath); path != "" {
		c.SQLite.Path = path
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// StorePath resolves the store file path against basePath.
func (c *Config) StorePath(basePath string) string {
	if filepath.IsAbs(c.SQLite.Path) {
		return c.SQLite.Path
	}
	return filepath.Join(basePath, c.SQLite.Path)
}

// ConfigDir returns the path to the .pseudo config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}
