package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Name != "web-search-mcp" || cfg.Server.Version != "1.0.0" {
		t.Fatalf("unexpected server identity: %+v", cfg.Server)
	}
	if cfg.RequestTimeout() != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", cfg.RequestTimeout())
	}
	if cfg.CacheTTL() != 300*time.Second {
		t.Fatalf("expected 300s ttl, got %v", cfg.CacheTTL())
	}
	if cfg.HTTP.UserAgent != "Mozilla/5.0 (compatible; MCP-Bot/1.0)" {
		t.Fatalf("unexpected user agent %q", cfg.HTTP.UserAgent)
	}
	if cfg.Search.Endpoint != "https://html.duckduckgo.com/html/" {
		t.Fatalf("unexpected endpoint %q", cfg.Search.Endpoint)
	}
	if cfg.Search.DefaultResults != 10 || cfg.Search.MaxResults != 20 {
		t.Fatalf("unexpected search limits: %+v", cfg.Search)
	}
	if cfg.Fetch.MaxTextChars != 10000 || cfg.Links.MaxTextChars != 100 {
		t.Fatalf("unexpected text limits: %+v %+v", cfg.Fetch, cfg.Links)
	}
	if cfg.Diagnostics.Addr != "" {
		t.Fatalf("expected diagnostics disabled, got %q", cfg.Diagnostics.Addr)
	}
}

func TestLoadServerNameFromEnv(t *testing.T) {
	t.Setenv("MCP_NAME", "research-web")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Name != "research-web" {
		t.Fatalf("expected server name from MCP_NAME, got %q", cfg.Server.Name)
	}
}

func TestLoadPrefixedEnvOverrides(t *testing.T) {
	t.Setenv("WEBSEARCH_HTTP_TIMEOUT_SECONDS", "3")
	t.Setenv("WEBSEARCH_LOGGING_DEBUG", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.TimeoutSeconds != 3 {
		t.Fatalf("expected timeout override, got %d", cfg.HTTP.TimeoutSeconds)
	}
	if !cfg.Logging.Debug {
		t.Fatal("expected debug logging from env")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  name: file-name
http:
  timeout_seconds: 4
  user_agent: test-agent
cache:
  ttl_seconds: 60
search:
  endpoint: http://127.0.0.1:9999/html/
  default_results: 5
  max_results: 8
fetch:
  max_text_chars: 500
diagnostics:
  addr: 127.0.0.1:9100
logging:
  development: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Name != "file-name" {
		t.Fatalf("expected file server name, got %q", cfg.Server.Name)
	}
	if cfg.RequestTimeout() != 4*time.Second || cfg.HTTP.UserAgent != "test-agent" {
		t.Fatalf("unexpected http config: %+v", cfg.HTTP)
	}
	if cfg.CacheTTL() != time.Minute {
		t.Fatalf("expected 60s ttl, got %v", cfg.CacheTTL())
	}
	if cfg.Search.Endpoint != "http://127.0.0.1:9999/html/" || cfg.Search.MaxResults != 8 {
		t.Fatalf("unexpected search config: %+v", cfg.Search)
	}
	if cfg.Fetch.MaxTextChars != 500 {
		t.Fatalf("expected 500 text chars, got %d", cfg.Fetch.MaxTextChars)
	}
	if cfg.Diagnostics.Addr != "127.0.0.1:9100" || !cfg.Logging.Development {
		t.Fatalf("unexpected diagnostics/logging: %+v %+v", cfg.Diagnostics, cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read config error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Name: "web-search-mcp"},
		HTTP:   HTTPConfig{TimeoutSeconds: 10},
		Cache:  CacheConfig{TTLSeconds: 300},
		Search: SearchConfig{Endpoint: "https://html.duckduckgo.com/html/", DefaultResults: 10, MaxResults: 20},
		Fetch:  FetchConfig{MaxTextChars: 10000},
		Links:  LinksConfig{MaxTextChars: 100},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected base config to be valid, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing name", func(c *Config) { c.Server.Name = "" }, "server.name"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"negative body", func(c *Config) { c.HTTP.MaxBodyBytes = -1 }, "http.max_body_bytes"},
		{"invalid ttl", func(c *Config) { c.Cache.TTLSeconds = 0 }, "cache.ttl_seconds"},
		{"missing endpoint", func(c *Config) { c.Search.Endpoint = "" }, "search.endpoint"},
		{"invalid max results", func(c *Config) { c.Search.MaxResults = 0 }, "search.max_results"},
		{"default above max", func(c *Config) { c.Search.DefaultResults = 30 }, "search.default_results"},
		{"invalid text chars", func(c *Config) { c.Fetch.MaxTextChars = 0 }, "fetch.max_text_chars"},
		{"invalid link chars", func(c *Config) { c.Links.MaxTextChars = 0 }, "links.max_text_chars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
