// Package config loads slopguard configuration from the environment
// and an optional YAML file. Environment wins over file values.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	GitHubToken string `yaml:"github_token"`
	CacheDir    string `yaml:"cache_dir"`
	Workers     int    `yaml:"workers"`
	Debug       bool   `yaml:"debug"`
	Profile     bool   `yaml:"profile"`
}

// Load resolves configuration: .env, then the optional YAML file at
// path (ignored when missing), then process environment overrides.
func Load(path string) *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	if path == "" {
		path = ".slopguard.yml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Printf("config: ignoring malformed %s: %v", path, err)
		}
	}

	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHubToken = v
	}
	if v := os.Getenv("SLOPGUARD_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("SLOPGUARD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if envBool("SLOPGUARD_DEBUG") {
		cfg.Debug = true
	}
	if envBool("SLOPGUARD_PROFILE") {
		cfg.Profile = true
	}
	return cfg
}

func envBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Debugf returns a debug log function, or nil when debug is off.
func (c *Config) Debugf() func(format string, args ...any) {
	if !c.Debug {
		return nil
	}
	return func(format string, args ...any) {
		log.Printf("debug: "+format, args...)
	}
}
