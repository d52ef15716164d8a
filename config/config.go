// Package config defines the Tandem daemon configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Tandem configuration.
type Config struct {
	Server       ServerConfig        `json:"server" yaml:"server"`
	Auth         AuthConfig          `json:"auth" yaml:"auth"`
	Remote       RemoteConfig        `json:"remote" yaml:"remote"`
	Integrations []IntegrationConfig `json:"integrations,omitempty" yaml:"integrations"`
	DataDir      string              `json:"data_dir" yaml:"data_dir"`
	LogLevel     string              `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the local HTTP server the UI talks to.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":8940"
}

// AuthConfig controls local dashboard authentication.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	AdminUser string `json:"admin_user" yaml:"admin_user"`
	AdminPass string `json:"admin_pass" yaml:"admin_pass"` // bcrypt hash
}

// RemoteConfig points at the backend the domain stores sync against.
type RemoteConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Token   string `json:"token" yaml:"token"`
}

// IntegrationConfig declares one external calendar source.
type IntegrationConfig struct {
	ID         string `json:"id" yaml:"id"`
	Type       string `json:"type" yaml:"type"` // e.g. "google"
	Name       string `json:"name,omitempty" yaml:"name"`
	CalendarID string `json:"calendar_id,omitempty" yaml:"calendar_id"`
	// CredentialsFile holds the OAuth client secrets for provider APIs.
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file"`
	TokenFile       string `json:"token_file,omitempty" yaml:"token_file"`
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8940",
		},
		Auth: AuthConfig{
			AdminUser: "admin",
		},
		Remote: RemoteConfig{
			BaseURL: "http://localhost:8941",
		},
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
