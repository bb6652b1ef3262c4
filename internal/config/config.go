// Package config loads service settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Polling   PollingConfig   `yaml:"polling"`
	Results   ResultsConfig   `yaml:"results"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
}

type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type PollingConfig struct {
	HotelsInterval time.Duration `yaml:"hotels_interval" validate:"gt=0"`
	PricesInterval time.Duration `yaml:"prices_interval" validate:"gt=0"`
}

type ResultsConfig struct {
	EmptyStateDelay time.Duration `yaml:"empty_state_delay" validate:"gt=0"`
}

type SessionConfig struct {
	IdleTTL time.Duration `yaml:"idle_ttl" validate:"gt=0"`
}

type RateLimitConfig struct {
	Rate   int           `yaml:"rate" validate:"gte=0"`
	Window time.Duration `yaml:"window" validate:"gt=0"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend" validate:"oneof=memory redis"`
	HotelsTTL time.Duration `yaml:"hotels_ttl" validate:"gte=0"`
	PricesTTL time.Duration `yaml:"prices_ttl" validate:"gte=0"`
}

type RedisConfig struct {
	Addr   string `yaml:"addr" validate:"omitempty,hostname_port"`
	Prefix string `yaml:"prefix"`
}

// KafkaConfig enables search events when Brokers is not empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" validate:"dive,hostname_port"`
	Topic   string   `yaml:"topic" validate:"required_with=Brokers"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns a configuration that runs with no file and no infrastructure.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:9001",
			Timeout: 3 * time.Second,
		},
		Polling: PollingConfig{
			HotelsInterval: 5 * time.Second,
			PricesInterval: 5 * time.Second,
		},
		Results: ResultsConfig{
			EmptyStateDelay: 500 * time.Millisecond,
		},
		Session: SessionConfig{
			IdleTTL: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Rate:   10,
			Window: time.Minute,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			HotelsTTL: time.Minute,
			PricesTTL: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Prefix: "stayfinder:",
		},
		Kafka: KafkaConfig{
			Topic: "stayfinder.searches",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every setting.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Backend == "redis" && c.Redis.Addr == "" {
		return errors.New("invalid config: redis.addr is required when cache.backend is redis")
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Upstream.BaseURL = getEnv("UPSTREAM_URL", c.Upstream.BaseURL)
	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = nil
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Kafka.Brokers = append(c.Kafka.Brokers, b)
			}
		}
	}

	if v := os.Getenv("SESSION_IDLE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SESSION_IDLE_TTL: %w", err)
		}
		c.Session.IdleTTL = d
	}
	return nil
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
