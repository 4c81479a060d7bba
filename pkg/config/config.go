// Package config loads the gateway configuration from YAML or JSON and
// supplies the built-in tool server catalogue.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig describes one tool server the orchestrator can manage.
type ServerConfig struct {
	Name      string            `yaml:"name" json:"name"`
	Transport string            `yaml:"transport" json:"transport"`
	Command   []string          `yaml:"command,omitempty" json:"command,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	URL       string            `yaml:"url,omitempty" json:"url,omitempty"`
	Timeout   string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// ExchangeTimeout parses the Timeout field. A missing or malformed value
// yields zero so the orchestrator default applies.
func (s ServerConfig) ExchangeTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// RedisConfig enables the Redis credential store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`
	TTL      string `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// CredentialTTL parses the TTL field. Zero means credentials never expire.
func (r RedisConfig) CredentialTTL() time.Duration {
	d, err := time.ParseDuration(r.TTL)
	if err != nil {
		return 0
	}
	return d
}

// EmailConfig points at the outbound email service.
type EmailConfig struct {
	ServiceURL string `yaml:"service_url" json:"service_url"`
	From       string `yaml:"from" json:"from"`
	FromName   string `yaml:"from_name,omitempty" json:"from_name,omitempty"`
}

// Config is the full gateway configuration.
type Config struct {
	Listen         string         `yaml:"listen" json:"listen"`
	Model          string         `yaml:"model" json:"model"`
	PlatformUserID string         `yaml:"platform_user_id" json:"platform_user_id"`
	CredentialDir  string         `yaml:"credential_dir,omitempty" json:"credential_dir,omitempty"`
	Redis          RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	Email          EmailConfig    `yaml:"email,omitempty" json:"email,omitempty"`
	Servers        []ServerConfig `yaml:"servers" json:"servers"`
}

// Default returns the configuration the gateway ships with: the stdio
// servers launched via docker/npx/node and the SSE sidecars on their
// conventional local ports.
func Default() *Config {
	return &Config{
		Listen:         ":8080",
		Model:          "gpt-4o-mini",
		PlatformUserID: "platform",
		CredentialDir:  ".toolgate/credentials",
		Servers: []ServerConfig{
			{Name: "github", Transport: "stdio", Command: []string{"docker", "run", "-i", "--rm", "-e", "GITHUB_PERSONAL_ACCESS_TOKEN", "ghcr.io/github/github-mcp-server"}},
			{Name: "notion", Transport: "stdio", Command: []string{"docker", "run", "-i", "--rm", "-e", "OPENAPI_MCP_HEADERS", "mcp/notion"}},
			{Name: "slack", Transport: "stdio", Command: []string{"npx", "-y", "slack-mcp-server@latest", "--transport", "stdio"}},
			{Name: "google_workspace", Transport: "stdio", Command: []string{"mcp-google", "drive", "--access-token", "placeholder"}},
			{Name: "google_sheets", Transport: "stdio", Command: []string{"mcp-google", "sheets", "--access-token", "placeholder"}},
			{Name: "instagram", Transport: "stdio", Command: []string{"npx", "-y", "instagram-dm-mcp", "start"}},
			{Name: "trello", Transport: "stdio", Command: []string{"npx", "-y", "@delorenj/mcp-server-trello"}},
			{Name: "twitter_x", Transport: "stdio", Command: []string{"node", "x-mcp-server/build/index.js"}},
			{Name: "openai", Transport: "sse", URL: "http://localhost:8001/mcp"},
			{Name: "stripe", Transport: "sse", URL: "http://localhost:8002/mcp"},
			{Name: "twilio", Transport: "sse", URL: "http://localhost:8003/mcp"},
		},
	}
}

// Load reads a configuration file (YAML or JSON) and overlays it on the
// defaults. A missing file at the default path is not an error; the
// built-in catalogue applies unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var file Config
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	merge(cfg, &file)
	return cfg, nil
}

// merge overlays non-zero fields from file onto cfg. Server entries
// replace catalogue entries with the same name and append otherwise.
func merge(cfg, file *Config) {
	if file.Listen != "" {
		cfg.Listen = file.Listen
	}
	if file.Model != "" {
		cfg.Model = file.Model
	}
	if file.PlatformUserID != "" {
		cfg.PlatformUserID = file.PlatformUserID
	}
	if file.CredentialDir != "" {
		cfg.CredentialDir = file.CredentialDir
	}
	if file.Redis.Addr != "" {
		cfg.Redis = file.Redis
	}
	if file.Email.ServiceURL != "" {
		cfg.Email = file.Email
	}

	for _, sv := range file.Servers {
		replaced := false
		for i, existing := range cfg.Servers {
			if existing.Name == sv.Name {
				cfg.Servers[i] = sv
				replaced = true
				break
			}
		}
		if !replaced {
			cfg.Servers = append(cfg.Servers, sv)
		}
	}
}
