package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"newsmux/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server ServerConfig `yaml:"server" json:"server" jsonschema:"description=HTTP server configuration"`

	Cache CacheConfig `yaml:"cache" json:"cache" jsonschema:"description=Snapshot cache configuration"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch" jsonschema:"description=Feed fetching configuration"`

	// Sources maps category -> source key -> source definition.
	// Read-only after startup.
	Sources map[string]map[string]SourceInfo `yaml:"sources" json:"sources" jsonschema:"required,description=News sources grouped by category"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server read/write timeout"`
}

// CacheConfig holds snapshot cache settings
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" json:"ttl" jsonschema:"default=5m,description=Snapshot time-to-live before a read triggers a refresh"`
}

// FetchConfig holds feed fetching settings
type FetchConfig struct {
	Timeout       time.Duration       `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=HTTP timeout for a single feed request"`
	SourceTimeout time.Duration       `yaml:"source_timeout" json:"source_timeout" jsonschema:"default=20s,description=Deadline for one source's whole fetch pipeline"`
	MaxWorkers    int                 `yaml:"max_workers" json:"max_workers" jsonschema:"default=15,description=Maximum concurrent source fetches"`
	MaxPerSource  int                 `yaml:"max_per_source" json:"max_per_source" jsonschema:"description=Cap on entries consumed per feed (0 = unlimited)"`
	UserAgent     string              `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent sent with feed and page requests"`
	ImageFallback ImageFallbackConfig `yaml:"image_fallback" json:"image_fallback" jsonschema:"description=Article page fetch fallback for image extraction"`
}

// ImageFallbackConfig bounds the per-article page fetch used when a feed
// entry carries no usable image
type ImageFallbackConfig struct {
	Timeout    time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=3s,description=HTTP timeout for a fallback page fetch"`
	MaxPerFeed int           `yaml:"max_per_feed" json:"max_per_feed" jsonschema:"default=3,description=Maximum fallback page fetches per feed"`
	Sources    []string      `yaml:"sources" json:"sources" jsonschema:"description=Source keys allowed to use the page fetch fallback"`
}

// SourceInfo describes one configured feed
type SourceInfo struct {
	Name string `yaml:"name" json:"name" jsonschema:"required,description=Display name of the source"`
	Feed string `yaml:"feed" json:"feed" jsonschema:"required,description=RSS/Atom feed URL"`
	Logo string `yaml:"logo" json:"logo" jsonschema:"description=Short logo tag shown next to articles"`
	Tier string `yaml:"tier" json:"tier" jsonschema:"default=free,enum=free,enum=premium,description=Source tier"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// supplementary check, a schema mismatch is not fatal
		lgr.Printf("[WARN] schema validation failed: %v", err)
	}

	return &cfg, nil
}

// setDefaults fills zero values with defaults
func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}

	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 15 * time.Second
	}
	if c.Fetch.SourceTimeout == 0 {
		c.Fetch.SourceTimeout = 20 * time.Second
	}
	if c.Fetch.MaxWorkers == 0 {
		c.Fetch.MaxWorkers = 15
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if c.Fetch.ImageFallback.Timeout == 0 {
		c.Fetch.ImageFallback.Timeout = 3 * time.Second
	}
	if c.Fetch.ImageFallback.MaxPerFeed == 0 {
		c.Fetch.ImageFallback.MaxPerFeed = 3
	}

	for category, sources := range c.Sources {
		for key, src := range sources {
			if src.Tier == "" {
				src.Tier = "free"
				c.Sources[category][key] = src
			}
		}
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server.timeout must be at least 1 second")
	}

	if cfg.Cache.TTL < time.Second {
		return fmt.Errorf("cache.ttl must be at least 1 second")
	}

	if cfg.Fetch.Timeout < time.Second {
		return fmt.Errorf("fetch.timeout must be at least 1 second")
	}
	if cfg.Fetch.SourceTimeout < cfg.Fetch.Timeout {
		return fmt.Errorf("fetch.source_timeout must not be shorter than fetch.timeout")
	}
	if cfg.Fetch.MaxWorkers < 1 {
		return fmt.Errorf("fetch.max_workers must be at least 1")
	}
	if cfg.Fetch.MaxPerSource < 0 {
		return fmt.Errorf("fetch.max_per_source must be non-negative")
	}

	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for category, sources := range cfg.Sources {
		for key, src := range sources {
			if src.Name == "" {
				return fmt.Errorf("sources.%s.%s: name is required", category, key)
			}
			if src.Feed == "" {
				return fmt.Errorf("sources.%s.%s: feed URL is required", category, key)
			}
			if src.Tier != "free" && src.Tier != "premium" {
				return fmt.Errorf("sources.%s.%s: tier must be free or premium", category, key)
			}
		}
	}

	return nil
}

// SourceList flattens the category table into domain sources, ordered by
// category then key so fan-out order is deterministic
func (c *Config) SourceList() []domain.Source {
	categories := make([]string, 0, len(c.Sources))
	for category := range c.Sources {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var result []domain.Source
	for _, category := range categories {
		keys := make([]string, 0, len(c.Sources[category]))
		for key := range c.Sources[category] {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			src := c.Sources[category][key]
			result = append(result, domain.Source{
				Key:      key,
				Name:     src.Name,
				FeedURL:  src.Feed,
				Logo:     src.Logo,
				Tier:     src.Tier,
				Category: category,
			})
		}
	}
	return result
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetFetchConfig returns feed fetching configuration
func (c *Config) GetFetchConfig() FetchConfig {
	return c.Fetch
}
