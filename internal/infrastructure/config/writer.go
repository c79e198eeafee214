package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# Pseudo-Core Configuration
# The passphrase is never read from this file: set PSEUDO_PASSPHRASE
# (or put it in .env) or answer the prompt.

sqlite:
  path: .pseudo/mappings.db

crypto:
  kdf_iterations: 600000

processing:
  theme: neutral          # neutral | star_wars | lotr
  workers: 1
  entity_types: [PERSON, LOCATION, ORG]
  recognizer: sidecar     # sidecar | llm
  gender_classifier: dictionary  # dictionary | llm
  # output_dir: out

llm:
  provider: openai
  model: gpt-4o-mini
  # base_url: http://localhost:11434/v1
  # api_key: your-api-key (or set OPENAI_API_KEY env var)

logging:
  level: info
  format: text

# metrics:
#   textfile: /var/lib/node_exporter/pseudo.prom
`

// WriteDefault creates the .pseudo directory and writes a default config file.
func WriteDefault(basePath string) error {
	configDir := filepath.Join(basePath, DefaultConfigDir)
	configFile := filepath.Join(configDir, DefaultConfigFile)

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file.
func Write(basePath string, cfg *Config) error {
	configDir := filepath.Join(basePath, DefaultConfigDir)
	configFile := filepath.Join(configDir, DefaultConfigFile)

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Exists checks if a pseudo config exists in the given path.
func Exists(basePath string) bool {
	configFile := filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
	_, err := os.Stat(configFile)
	return err == nil
}
