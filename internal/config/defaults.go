package config

import "github.com/bobmcallan/jira-bridge/internal/common"

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "Jira-Bridge",
			Port: "4250",
		},
		Jira: JiraConfig{},
		Logging: common.LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console", "file"},
			FilePath:   "logs/jira-bridge.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}
