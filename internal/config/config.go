// Package config loads service configuration from a YAML file, a local
// .env file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the tracker.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Tracking TrackingConfig `yaml:"tracking"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Sink     SinkConfig     `yaml:"sink"`
	Registry RegistryConfig `yaml:"registry"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TrackingConfig holds the public-facing tracking settings.
type TrackingConfig struct {
	// Domain is the tracking host; invalid click URLs redirect to its
	// https origin.
	Domain string `yaml:"domain"`
	// LogoPath is the PNG served on the unsubscribe page.
	LogoPath string `yaml:"logo_path"`
}

// FallbackURL returns the redirect destination for missing or malformed
// click URLs.
func (c TrackingConfig) FallbackURL() string {
	return "https://" + c.Domain
}

// DispatchConfig tunes the batch dispatcher.
type DispatchConfig struct {
	BatchIntervalSeconds int `yaml:"batch_interval_seconds"`
	MaxDrainCount        int `yaml:"max_drain_count"`
	SinkTimeoutSeconds   int `yaml:"sink_timeout_seconds"`
}

// Interval returns the flush interval as a duration.
func (c DispatchConfig) Interval() time.Duration {
	return time.Duration(c.BatchIntervalSeconds) * time.Second
}

// SinkTimeout returns the per-partition sink call timeout.
func (c DispatchConfig) SinkTimeout() time.Duration {
	return time.Duration(c.SinkTimeoutSeconds) * time.Second
}

// SinkConfig selects and configures the delivery sink. SheetID takes
// precedence; WebhookURL is the fallback sink and, independently, the
// audit endpoint for unsubscribe traffic.
type SinkConfig struct {
	SheetID            string `yaml:"sheet_id"`
	ServiceAccountFile string `yaml:"service_account_file"`
	WebhookURL         string `yaml:"webhook_url"`
}

// RegistryConfig configures the tracking-id registry.
type RegistryConfig struct {
	// TTLHours bounds how long a registration stays resolvable. Zero
	// falls back to the 30-day default, so eviction is always on for a
	// configured service.
	TTLHours int `yaml:"ttl_hours"`
	// RedisURL switches the registry to the Redis store when set.
	RedisURL string `yaml:"redis_url"`
}

// TTL returns the registry entry lifetime.
func (c RegistryConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// Load reads and parses the configuration file. A missing file is not an
// error; the service can run on defaults plus environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Tracking.Domain == "" {
		cfg.Tracking.Domain = "let-inc.net"
	}
	if cfg.Dispatch.BatchIntervalSeconds == 0 {
		cfg.Dispatch.BatchIntervalSeconds = 60
	}
	if cfg.Dispatch.MaxDrainCount == 0 {
		cfg.Dispatch.MaxDrainCount = 500
	}
	if cfg.Dispatch.SinkTimeoutSeconds == 0 {
		cfg.Dispatch.SinkTimeoutSeconds = 5
	}
	if cfg.Sink.ServiceAccountFile == "" {
		cfg.Sink.ServiceAccountFile = "service_account.json"
	}
	if cfg.Registry.TTLHours == 0 {
		cfg.Registry.TTLHours = 24 * 30
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is read first, so secrets can live in .env
// locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("TRACKING_DOMAIN"); v != "" {
		cfg.Tracking.Domain = v
	}
	if v := os.Getenv("LOGO_PATH"); v != "" {
		cfg.Tracking.LogoPath = v
	}
	if v := os.Getenv("SHEET_ID"); v != "" {
		cfg.Sink.SheetID = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		cfg.Sink.ServiceAccountFile = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Sink.WebhookURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Registry.RedisURL = v
	}
	if v := os.Getenv("BATCH_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BATCH_INTERVAL_SECONDS %q: %w", v, err)
		}
		cfg.Dispatch.BatchIntervalSeconds = n
	}
	if v := os.Getenv("MAX_DRAIN_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_DRAIN_COUNT %q: %w", v, err)
		}
		cfg.Dispatch.MaxDrainCount = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}
