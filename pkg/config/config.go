package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "WHISKER_"

// Config is the full process configuration
type Config struct {
	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR"`
	GRPCAddr string `yaml:"grpc_addr" env:"GRPC_ADDR"`
	DataDir  string `yaml:"data_dir" env:"DATA_DIR"`

	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Buffer    BufferConfig    `yaml:"buffer" envPrefix:"BUFFER_"`
	Generator GeneratorConfig `yaml:"generator" envPrefix:"GENERATOR_"`
	CORS      CORSConfig      `yaml:"cors" envPrefix:"CORS_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	JSON  bool   `yaml:"json" env:"JSON"`
}

// BufferConfig sizes the log feed
type BufferConfig struct {
	Capacity         int           `yaml:"capacity" env:"CAPACITY"`
	SubscriberBuffer int           `yaml:"subscriber_buffer" env:"SUBSCRIBER_BUFFER"`
	ReplayCount      int           `yaml:"replay_count" env:"REPLAY_COUNT"`
	HistoryDefault   int           `yaml:"history_default" env:"HISTORY_DEFAULT"`
	Heartbeat        time.Duration `yaml:"heartbeat" env:"HEARTBEAT"`
}

type GeneratorConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

type CORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin" env:"ALLOWED_ORIGIN"`
}

// RateLimitConfig limits POST /api/logs per client IP
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RPS"`
	Burst int     `yaml:"burst" env:"BURST"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		HTTPAddr: ":8000",
		Log: LogConfig{
			Level: "info",
		},
		Buffer: BufferConfig{
			Capacity:         1000,
			SubscriberBuffer: 100,
			ReplayCount:      50,
			HistoryDefault:   100,
			Heartbeat:        30 * time.Second,
		},
		Generator: GeneratorConfig{
			Enabled:  true,
			Interval: 3 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigin: "*",
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file in the working directory and WHISKER_* environment
// variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	switch {
	case c.HTTPAddr == "":
		return fmt.Errorf("http_addr is required")
	case c.Buffer.Capacity <= 0:
		return fmt.Errorf("buffer.capacity must be positive, got %d", c.Buffer.Capacity)
	case c.Buffer.SubscriberBuffer <= 0:
		return fmt.Errorf("buffer.subscriber_buffer must be positive, got %d", c.Buffer.SubscriberBuffer)
	case c.Buffer.ReplayCount <= 0:
		return fmt.Errorf("buffer.replay_count must be positive, got %d", c.Buffer.ReplayCount)
	case c.Buffer.HistoryDefault <= 0:
		return fmt.Errorf("buffer.history_default must be positive, got %d", c.Buffer.HistoryDefault)
	case c.Buffer.Heartbeat <= 0:
		return fmt.Errorf("buffer.heartbeat must be positive, got %s", c.Buffer.Heartbeat)
	case c.Generator.Interval < time.Second:
		return fmt.Errorf("generator.interval must be at least 1s, got %s", c.Generator.Interval)
	case c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0:
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
