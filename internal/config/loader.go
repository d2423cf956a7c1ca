package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")                // Current directory
		v.AddConfigPath("./configs")        // Project configs directory
		v.AddConfigPath("/etc/neurareport") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides
	v.SetEnvPrefix("NEURAREPORT")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 7070)

	// Upstream defaults
	v.SetDefault("upstream.base_url", "http://localhost:8000")
	v.SetDefault("upstream.timeout", "30s")

	// Cache defaults
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", "./data/cache")
	v.SetDefault("cache.max_bytes", 2*1024*1024)
	v.SetDefault("cache.max_entries", 50)
	v.SetDefault("cache.redis_addr", "localhost:6379")

	// Registry defaults
	v.SetDefault("registry.endpoints", []string{"http://localhost:2379"})
	v.SetDefault("registry.dial_timeout", "5s")
	v.SetDefault("registry.cache_ttl", "30s")

	// Bus defaults
	v.SetDefault("bus.type", "nats")
	v.SetDefault("bus.url", "nats://localhost:4222")
	v.SetDefault("bus.redis_channel", "neurareport")

	// Jobs defaults
	v.SetDefault("jobs.subject", "jobs.report.generate")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			HTTPPort: 7070,
		},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    "file",
			Dir:        "./data/cache",
			MaxBytes:   2 * 1024 * 1024,
			MaxEntries: 50,
			RedisAddr:  "localhost:6379",
		},
		Registry: RegistryConfig{
			Endpoints:   []string{"http://localhost:2379"},
			DialTimeout: 5 * time.Second,
			CacheTTL:    30 * time.Second,
		},
		Bus: BusConfig{
			Type: "nats",
			URL:  "nats://localhost:4222",
		},
		Jobs: JobsConfig{
			Subject: "jobs.report.generate",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
