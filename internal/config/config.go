// Package config loads and validates worker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Announced identity when nothing else is configured.
const (
	DefaultServerName = "web-search-mcp"
	DefaultVersion    = "1.0.0"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Search      SearchConfig      `mapstructure:"search"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Links       LinksConfig       `mapstructure:"links"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls what the worker announces at startup.
type ServerConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// CacheConfig sets the fetch cache lifetime.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// SearchConfig points the search tool at its HTML endpoint.
type SearchConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	DefaultResults int    `mapstructure:"default_results"`
	MaxResults     int    `mapstructure:"max_results"`
}

// FetchConfig bounds extracted page text.
type FetchConfig struct {
	MaxTextChars int `mapstructure:"max_text_chars"`
}

// LinksConfig bounds link anchor text.
type LinksConfig struct {
	MaxTextChars int `mapstructure:"max_text_chars"`
}

// DiagnosticsConfig enables the side HTTP listener. An empty Addr disables it.
type DiagnosticsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features and verbosity.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	Debug       bool `mapstructure:"debug"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.name", "MCP_NAME", "WEBSEARCH_SERVER_NAME"); err != nil {
		return Config{}, fmt.Errorf("bind server name env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", DefaultServerName)
	v.SetDefault("server.version", DefaultVersion)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (compatible; MCP-Bot/1.0)")
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("search.endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.default_results", 10)
	v.SetDefault("search.max_results", 20)
	v.SetDefault("fetch.max_text_chars", 10000)
	v.SetDefault("links.max_text_chars", 100)
	v.SetDefault("diagnostics.addr", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.debug", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	if c.Search.Endpoint == "" {
		return fmt.Errorf("search.endpoint must be set")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	if c.Search.DefaultResults <= 0 || c.Search.DefaultResults > c.Search.MaxResults {
		return fmt.Errorf("search.default_results must be between 1 and search.max_results")
	}
	if c.Fetch.MaxTextChars <= 0 {
		return fmt.Errorf("fetch.max_text_chars must be > 0")
	}
	if c.Links.MaxTextChars <= 0 {
		return fmt.Errorf("links.max_text_chars must be > 0")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CacheTTL converts the cache lifetime into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
