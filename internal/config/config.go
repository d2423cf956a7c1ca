package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Registry RegistryConfig `mapstructure:"registry"`
	Bus      BusConfig      `mapstructure:"bus"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host     string `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort int    `mapstructure:"http_port"` // HTTP server port
}

// UpstreamConfig represents the backend discovery API configuration
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"` // Discovery backend base URL
	Timeout time.Duration `mapstructure:"timeout"`  // Per-request timeout
	APIKey  string        `mapstructure:"api_key"`  // Optional API key forwarded upstream
}

// CacheConfig represents discovery cache configuration
type CacheConfig struct {
	Backend    string `mapstructure:"backend"`     // Cache backend: file (default), redis, memory
	Dir        string `mapstructure:"dir"`         // Directory for the file backend
	MaxBytes   int64  `mapstructure:"max_bytes"`   // Serialized envelope byte budget (default: 2 MiB)
	MaxEntries int    `mapstructure:"max_entries"` // Max cached template results (default: 50)
	QuotaBytes int64  `mapstructure:"quota_bytes"` // Hard write quota of the backing store (0 = unlimited)

	// Redis-specific options
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis address (default: localhost:6379)
	RedisPassword string `mapstructure:"redis_password"` // Optional authentication
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
}

// RegistryConfig represents the etcd-backed template registry configuration
type RegistryConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"` // TTL for the in-memory read cache
}

// BusConfig represents the change-notification bus configuration
type BusConfig struct {
	Type     string `mapstructure:"type"`     // Bus type: nats (default), redis, kafka, memory
	URL      string `mapstructure:"url"`      // Bus server URL (e.g., nats://localhost:4222)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	// Redis-specific options
	RedisDB      int    `mapstructure:"redis_db"`      // Redis database number (default: 0)
	RedisChannel string `mapstructure:"redis_channel"` // Pub/sub channel prefix (default: "neurareport")

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"` // Kafka broker addresses
}

// JobsConfig represents report-generation job submission configuration
type JobsConfig struct {
	Subject string `mapstructure:"subject"` // Subject/topic for generation jobs
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry config: %w", err)
	}

	if err := c.Bus.Validate(); err != nil {
		return fmt.Errorf("bus config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case "", "file", "redis", "memory":
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Backend)
	}

	if c.Backend == "" || c.Backend == "file" {
		if c.Dir == "" {
			return fmt.Errorf("cache.dir is required for the file backend")
		}
	}

	if c.MaxBytes <= 0 {
		return fmt.Errorf("cache.max_bytes must be positive")
	}

	if c.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive")
	}

	return nil
}

// Validate validates registry configuration
func (c *RegistryConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("registry.endpoints is required")
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("registry.dial_timeout must be positive")
	}

	return nil
}

// Validate validates bus configuration
func (c *BusConfig) Validate() error {
	switch c.Type {
	case "", "nats", "redis", "kafka", "memory":
	default:
		return fmt.Errorf("unsupported bus type: %s", c.Type)
	}

	if c.Type == "kafka" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("bus.kafka_brokers is required for the kafka bus")
	}

	return nil
}
