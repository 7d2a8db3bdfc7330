// internal/config/environment.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultRSSLimit = 20

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Site     SiteConfig     `yaml:"site"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port       int  `yaml:"port"`
	Production bool `yaml:"production"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SiteConfig holds the site-wide fallbacks used when no events page exists.
// The settings table may override Title and Tagline at request time.
type SiteConfig struct {
	Title   string `yaml:"title"`
	Tagline string `yaml:"tagline"`
	URL     string `yaml:"url"`
}

type FeedsConfig struct {
	EventSlug string `yaml:"event_slug"`
	// RSSLimit caps the number of feed items. Nil means unbounded.
	RSSLimit        *int     `yaml:"rss_limit"`
	RichtextFilters []string `yaml:"richtext_filters"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Load reads the YAML file at path, expanding ${VAR} references, then applies
// defaults and EVENTFEEDS_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := newConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
		expanded := os.Expand(string(data), os.Getenv)
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config %s: %w", path, err)
		}
	}

	setDefaults(cfg)
	applyEnvironment(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Feeds.RSSLimit != nil && *c.Feeds.RSSLimit < 0 {
		return fmt.Errorf("feeds.rss_limit must not be negative, got %d", *c.Feeds.RSSLimit)
	}
	return nil
}

// GetConfig returns defaults with environment overrides and no config file.
func GetConfig() *Config {
	cfg := newConfig()
	setDefaults(cfg)
	applyEnvironment(cfg)
	return cfg
}

// newConfig seeds the nullable fields before the file is decoded, so an
// explicit "rss_limit: null" can still clear the cap.
func newConfig() *Config {
	limit := DefaultRSSLimit
	return &Config{Feeds: FeedsConfig{RSSLimit: &limit}}
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/eventfeeds.db"
	}
	if cfg.Site.Title == "" {
		cfg.Site.Title = "Events"
	}
	if cfg.Feeds.EventSlug == "" {
		cfg.Feeds.EventSlug = "events"
	}
	if cfg.Feeds.RichtextFilters == nil {
		cfg.Feeds.RichtextFilters = []string{"strip_scripts", "absolute_urls"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Site.URL = strings.TrimRight(strings.TrimSpace(cfg.Site.URL), "/")
}

func applyEnvironment(cfg *Config) {
	if port := os.Getenv("EVENTFEEDS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if dbPath := os.Getenv("EVENTFEEDS_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if siteURL := os.Getenv("EVENTFEEDS_SITE_URL"); siteURL != "" {
		cfg.Site.URL = strings.TrimRight(siteURL, "/")
	}

	// "none" lifts the cap entirely.
	if limit := os.Getenv("EVENTFEEDS_RSS_LIMIT"); limit != "" {
		if strings.EqualFold(limit, "none") {
			cfg.Feeds.RSSLimit = nil
		} else if n, err := strconv.Atoi(limit); err == nil && n >= 0 {
			cfg.Feeds.RSSLimit = &n
		}
	}

	if level := os.Getenv("EVENTFEEDS_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
