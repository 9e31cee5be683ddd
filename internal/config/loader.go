package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultStreamURL      = "ws://localhost:8080/ws/alerts"
	defaultBackendURL     = "http://localhost:8080"
	defaultReconnectDelay = 3 * time.Second
	defaultTimeout        = 10 * time.Second
	defaultFeedSize       = 50
	defaultMaxSessions    = 256
	defaultIdleTTL        = 30 * time.Minute
	defaultHTTPPort       = 8088
	defaultGRPCPort       = 9090
)

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, nil)
	return cfg
}

// LoadConfig reads path, applies environment overrides and defaults, and
// validates the result. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	var raw map[string]any

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
			// kept to tell an explicit grpc_port: 0 from an absent key
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(cfg, raw)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config, raw map[string]any) {
	if cfg.Stream.URL == "" {
		cfg.Stream.URL = defaultStreamURL
	}
	if cfg.Stream.ReconnectDelay == 0 {
		cfg.Stream.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.Stream.DialTimeout == 0 {
		cfg.Stream.DialTimeout = defaultTimeout
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaultBackendURL
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = defaultTimeout
	}
	if cfg.Alerts.FeedSize == 0 {
		cfg.Alerts.FeedSize = defaultFeedSize
	}
	if cfg.Authoring.MaxSessions == 0 {
		cfg.Authoring.MaxSessions = defaultMaxSessions
	}
	if cfg.Authoring.IdleTTL == 0 {
		cfg.Authoring.IdleTTL = defaultIdleTTL
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = defaultHTTPPort
	}
	if cfg.Server.GRPCPort == 0 && !hasKey(raw, "server", "grpc_port") && os.Getenv("FENCEWATCH_GRPC_PORT") == "" {
		cfg.Server.GRPCPort = defaultGRPCPort
	}
}

func hasKey(raw map[string]any, section, key string) bool {
	sec, ok := raw[section].(map[string]any)
	if !ok {
		return false
	}
	_, ok = sec[key]
	return ok
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	if err := validateURL("stream.url", cfg.Stream.URL, "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("backend.url", cfg.Backend.URL, "http", "https"); err != nil {
		return err
	}
	if cfg.Notify.AppriseURL != "" {
		if err := validateURL("notify.apprise_url", cfg.Notify.AppriseURL, "http", "https"); err != nil {
			return err
		}
	}

	if cfg.Stream.ReconnectDelay < 0 {
		return fmt.Errorf("stream.reconnect_delay must not be negative")
	}
	if cfg.Stream.MaxRetries < 0 {
		return fmt.Errorf("stream.max_retries must be >= 0")
	}
	if cfg.Stream.DialTimeout < 0 {
		return fmt.Errorf("stream.dial_timeout must not be negative")
	}
	if cfg.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	if cfg.Alerts.FeedSize < 1 {
		return fmt.Errorf("alerts.feed_size must be > 0")
	}
	if cfg.Authoring.MaxSessions < 1 {
		return fmt.Errorf("authoring.max_sessions must be > 0")
	}
	if cfg.Authoring.IdleTTL < 0 {
		return fmt.Errorf("authoring.idle_ttl must not be negative")
	}

	if cfg.Server.HTTPPort < 1 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535")
	}
	if cfg.Server.GRPCPort < 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port must be between 0 and 65535")
	}
	if cfg.Server.GRPCPort != 0 && cfg.Server.GRPCPort == cfg.Server.HTTPPort {
		return fmt.Errorf("server.grpc_port and server.http_port must differ")
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host is required", field)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme must be one of %v", field, schemes)
}
