package config

import "time"

// Config represents the complete fencewatch configuration
type Config struct {
	Stream    StreamConfig    `yaml:"stream"`
	Backend   BackendConfig   `yaml:"backend"`
	Alerts    AlertConfig     `yaml:"alerts"`
	Authoring AuthoringConfig `yaml:"authoring"`
	Server    ServerConfig    `yaml:"server"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// StreamConfig describes the backend alert websocket
type StreamConfig struct {
	URL            string        `yaml:"url" env:"FENCEWATCH_WS_URL"`
	Origin         string        `yaml:"origin,omitempty"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	MaxRetries     int           `yaml:"max_retries"` // 0 retries forever
	DialTimeout    time.Duration `yaml:"dial_timeout"`
}

// BackendConfig describes the backend REST API
type BackendConfig struct {
	URL     string        `yaml:"url" env:"FENCEWATCH_API_URL"`
	Timeout time.Duration `yaml:"timeout"`
}

// AlertConfig controls the dashboard alert feed
type AlertConfig struct {
	FeedSize int `yaml:"feed_size"`
}

// AuthoringConfig bounds the in-memory geofence drafts
type AuthoringConfig struct {
	MaxSessions int           `yaml:"max_sessions"`
	IdleTTL     time.Duration `yaml:"idle_ttl"`
}

// ServerConfig holds the listen ports
type ServerConfig struct {
	HTTPPort int `yaml:"http_port" env:"FENCEWATCH_HTTP_PORT"`
	// GRPCPort serves the health service; 0 disables it
	GRPCPort int `yaml:"grpc_port" env:"FENCEWATCH_GRPC_PORT"`
}

// NotifyConfig configures optional Apprise delivery
type NotifyConfig struct {
	AppriseURL string `yaml:"apprise_url,omitempty" env:"APPRISE_API_URL"`
	AppriseTag string `yaml:"apprise_tag,omitempty"`
}
