package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/jira-bridge/internal/common"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig         `toml:"server"`
	Jira    JiraConfig           `toml:"jira"`
	Logging common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains MCP server settings.
type ServerConfig struct {
	Name string `toml:"name"`
	Port string `toml:"port"`
}

// JiraConfig contains the upstream Jira connection settings.
// URL, Email, and APIToken are normally supplied via environment
// (JIRA_URL, JIRA_EMAIL, JIRA_API_TOKEN) rather than the TOML file.
type JiraConfig struct {
	URL      string `toml:"url"`
	Email    string `toml:"email"`
	APIToken string `toml:"api_token"`
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. Missing files are skipped so the
// binary can run from environment alone.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// JIRA_* variables match the plugin's documented environment contract.
func applyEnvOverrides(config *Config) {
	if url := os.Getenv("JIRA_URL"); url != "" {
		config.Jira.URL = url
	}
	if email := os.Getenv("JIRA_EMAIL"); email != "" {
		config.Jira.Email = email
	}
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		config.Jira.APIToken = token
	}
	if port := os.Getenv("BRIDGE_PORT"); port != "" {
		config.Server.Port = port
	}
	if level := os.Getenv("BRIDGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}
