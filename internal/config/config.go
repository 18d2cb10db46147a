// Package config handles bridge configuration loading and validation.
// Secrets never live in the file; they come from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the bridge.
type Config struct {
	Server ServerConfig `yaml:"server"`
	GitHub GitHubConfig `yaml:"github"`
	Asana  AsanaConfig  `yaml:"asana"`
	Cache  CacheConfig  `yaml:"cache"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type GitHubConfig struct {
	Owner   string   `yaml:"owner"`
	Repo    string   `yaml:"repo"`
	BaseURL string   `yaml:"base_url"`
	Actions []string `yaml:"actions"` // pull_request actions the webhook reacts to
}

type AsanaConfig struct {
	BaseURL string `yaml:"base_url"`
}

type CacheConfig struct {
	TTL Duration `yaml:"ttl"`
}

// Duration wraps time.Duration so the yaml file can say "5m" or "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Cache:  CacheConfig{TTL: Duration(5 * time.Minute)},
	}
}

// Load reads the yaml file at path on top of the defaults. An empty path
// yields the defaults alone. The PORT environment variable, when set,
// overrides the configured port either way.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if cfg.Server.Port == "" {
			cfg.Server.Port = Default().Server.Port
		}
		if cfg.Cache.TTL == 0 {
			cfg.Cache.TTL = Default().Cache.TTL
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	return cfg, nil
}

// Validate checks the fields the server cannot run without.
func (c Config) Validate() error {
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		return fmt.Errorf("github.owner and github.repo are required")
	}
	return nil
}

// RepoSlug returns "owner/repo".
func (c Config) RepoSlug() string {
	return c.GitHub.Owner + "/" + c.GitHub.Repo
}
