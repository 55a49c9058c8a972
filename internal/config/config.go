// Package config loads noterank configuration from a YAML file with
// environment fallbacks for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/liliang-cn/noterank/pkg/provider"
)

// Config stores noterank configuration, loaded from
// ~/.config/noterank/config.yaml by default.
type Config struct {
	DBPath   string         `yaml:"db_path"`
	TopK     int            `yaml:"top_k"`
	Provider ProviderConfig `yaml:"provider"`
}

// ProviderConfig selects and configures the embedding backend.
type ProviderConfig struct {
	Variant  string `yaml:"variant"`
	ModelDir string `yaml:"model_dir"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "noterank", "config.yaml"), nil
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		TopK: 3,
		Provider: ProviderConfig{
			Variant: string(provider.VariantLocalUSE),
		},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg.normalized()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg.normalized()
}

func (c *Config) normalized() (*Config, error) {
	if c.TopK <= 0 {
		c.TopK = 3
	}

	if c.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		c.DBPath = filepath.Join(home, ".local", "share", "noterank", "notes.db")
	} else {
		expanded, err := ExpandPath(c.DBPath)
		if err != nil {
			return nil, err
		}
		c.DBPath = expanded
	}

	if c.Provider.ModelDir != "" {
		expanded, err := ExpandPath(c.Provider.ModelDir)
		if err != nil {
			return nil, err
		}
		c.Provider.ModelDir = expanded
	}

	if c.Provider.APIKey == "" {
		c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if !provider.Variant(c.Provider.Variant).Valid() {
		return nil, fmt.Errorf("unknown provider variant %q", c.Provider.Variant)
	}
	return c, nil
}

// ProviderSpec translates the file section into a provider factory config.
func (c *Config) ProviderSpec() provider.Config {
	variant := provider.Variant(c.Provider.Variant)
	spec := provider.Config{
		Variant:  variant,
		APIKey:   c.Provider.APIKey,
		Model:    c.Provider.Model,
		Endpoint: c.Provider.Endpoint,
	}
	if c.Provider.ModelDir != "" {
		spec.ModelPath = filepath.Join(c.Provider.ModelDir, string(variant)+".model.json")
	}
	return spec
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
