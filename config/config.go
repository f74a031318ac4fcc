package config

import (
	"fmt"
	"strings"
	"time"

	// Packages
	yaml "github.com/knadh/koanf/parsers/yaml"
	env "github.com/knadh/koanf/providers/env"
	file "github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	schema "github.com/mutablelogic/go-collect/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Config holds every tunable of the collection pipeline. Values are read
// from an optional YAML file and overridden by COLLECT_* environment
// variables (COLLECT_SERVER_LISTEN sets server.listen, and so on).
type Config struct {
	Server ServerConfig                 `koanf:"server"`
	Client ClientConfig                 `koanf:"client"`
	Upload UploadConfig                 `koanf:"upload"`
	Plans  map[string]schema.PlanLimits `koanf:"plans"`
}

type ServerConfig struct {
	Listen     string            `koanf:"listen"`
	Prefix     string            `koanf:"prefix"`
	Workspaces []WorkspaceConfig `koanf:"workspaces"`
}

type WorkspaceConfig struct {
	URL       string `koanf:"url"`
	Plan      string `koanf:"plan"`
	Endpoint  string `koanf:"endpoint"`
	Anonymous bool   `koanf:"anonymous"`
	CreateDir bool   `koanf:"createdir"`
}

type ClientConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
	Debug   bool          `koanf:"debug"`
}

type UploadConfig struct {
	Workspace   string          `koanf:"workspace"`
	Folder      string          `koanf:"folder"`
	Concurrency int             `koanf:"concurrency"`
	Retries     int             `koanf:"retries"`
	Delays      []time.Duration `koanf:"delays"`
}

////////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const envPrefix = "COLLECT_"

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a configuration populated with defaults only.
func New() *Config {
	retryDelay, _ := time.ParseDuration(schema.DefaultRetryDelay)
	timeout, _ := time.ParseDuration(schema.DefaultRequestTimeout)
	return &Config{
		Server: ServerConfig{
			Listen: ":8080",
			Prefix: "/api/collect",
		},
		Client: ClientConfig{
			URL:     "http://localhost:8080/api/collect",
			Timeout: timeout,
		},
		Upload: UploadConfig{
			Concurrency: schema.DefaultConcurrency,
			Retries:     schema.DefaultMaxRetries,
			Delays:      []time.Duration{retryDelay},
		},
		Plans: DefaultPlans(),
	}
}

// Load reads the configuration from path (YAML, optional: pass an empty
// path for defaults only) and applies COLLECT_* environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %q: %w", path, err)
		}
	}

	// Environment overrides the file
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, err
	}

	config := New()
	if err := k.Unmarshal("", config); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Upload.Concurrency < 1 {
		return fmt.Errorf("upload.concurrency must be at least 1, got %d", c.Upload.Concurrency)
	}
	if c.Upload.Retries < 0 {
		return fmt.Errorf("upload.retries must not be negative, got %d", c.Upload.Retries)
	}
	for _, ws := range c.Server.Workspaces {
		if ws.URL == "" {
			return fmt.Errorf("workspace is missing a url")
		}
		if ws.Plan != "" {
			if _, exists := c.Plans[ws.Plan]; !exists {
				return fmt.Errorf("workspace %q references unknown plan %q", ws.URL, ws.Plan)
			}
		}
	}
	return nil
}

// Plan returns the named plan limits, with the key field populated from the
// map key. The second return is false when the plan is not defined.
func (c *Config) Plan(key string) (schema.PlanLimits, bool) {
	plan, exists := c.Plans[key]
	if exists && plan.Key == "" {
		plan.Key = key
	}
	return plan, exists
}

// DefaultPlans returns the built-in plan catalogue.
func DefaultPlans() map[string]schema.PlanLimits {
	return map[string]schema.PlanLimits{
		"free": {
			Key:               "free",
			MaxFileSize:       100 << 20, // 100MB
			LimitBytes:        2 << 30,   // 2GB
			MaxFilesPerUpload: 10,
		},
		"pro": {
			Key:               "pro",
			MaxFileSize:       2 << 30,  // 2GB
			LimitBytes:        50 << 30, // 50GB
			MaxFilesPerUpload: 100,
		},
		"unlimited": {
			Key: "unlimited",
		},
	}
}
