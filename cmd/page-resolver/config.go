package main

import (
	"os"

	"github.com/always-cache/page-resolver/auth"
	"github.com/always-cache/page-resolver/content"
	bypassrules "github.com/always-cache/page-resolver/pkg/bypass-rules"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port   int    `yaml:"port"`
	Origin string `yaml:"origin"`
	// Hostname to use for origin requests, if it differs from the origin URL.
	Host              string                    `yaml:"host"`
	Store             StoreConfig               `yaml:"store"`
	CacheExpiresPages int                       `yaml:"cacheExpiresPages"`
	DefaultSite       uuid.UUID                 `yaml:"defaultSite"`
	Sites             map[string]uuid.UUID      `yaml:"sites"`
	Tokens            map[string]auth.Principal `yaml:"tokens"`
	Bypass            bypassrules.Rules         `yaml:"bypass"`
	Pages             []content.Page            `yaml:"pages"`
	Metrics           MetricsConfig             `yaml:"metrics"`
}

// MetricsConfig places the metrics endpoint.
// With a port set, metrics get their own listener and no page URL is reserved.
// Otherwise Path (default /metrics) is reserved on the main listener.
type MetricsConfig struct {
	Path string `yaml:"path"`
	Port int    `yaml:"port"`
}

func (m MetricsConfig) path() string {
	if m.Path == "" {
		return "/metrics"
	}
	return m.Path
}

type StoreConfig struct {
	// One of "memory", "sqlite" or "leveldb".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
