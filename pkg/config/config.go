// Package config loads client settings from a YAML file and the environment.
//
// A file looks like:
//
//	account: acme
//	# token is usually taken from JUPITERONE_TOKEN
//	graphql_url: https://graphql.us.jupiterone.io
//	max_workers: 4
//	retry:
//	  max_attempts: 5
//	  initial_backoff: 1s
//	redis:
//	  addr: localhost:6379
//	result_cache_ttl: 5m
//	log:
//	  level: debug
//
// Environment variables override the file (see ApplyEnv).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jupiterone/jupiterone-client-go/pkg/client"
	"github.com/jupiterone/jupiterone-client-go/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvAccount           = "JUPITERONE_ACCOUNT"
	EnvToken             = "JUPITERONE_TOKEN"
	EnvURL               = "JUPITERONE_URL"
	EnvSyncURL           = "JUPITERONE_SYNC_URL"
	EnvMaxWorkers        = "JUPITERONE_MAX_WORKERS"
	EnvRequestsPerSecond = "JUPITERONE_REQUESTS_PER_SECOND"
	EnvRedisAddr         = "JUPITERONE_REDIS_ADDR"
	EnvResultCacheTTL    = "JUPITERONE_RESULT_CACHE_TTL"
	EnvLogLevel          = "JUPITERONE_LOG_LEVEL"
)

// Config is the on-disk configuration. Zero values fall back to
// client.DefaultConfig.
type Config struct {
	Account    string `yaml:"account"`
	Token      string `yaml:"token"`
	GraphQLURL string `yaml:"graphql_url"`
	SyncURL    string `yaml:"sync_url"`

	HTTPTimeout         time.Duration `yaml:"http_timeout"`
	MaxWorkers          int           `yaml:"max_workers"`
	AllowPartialResults bool          `yaml:"allow_partial_results"`
	RequestsPerSecond   float64       `yaml:"requests_per_second"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	PollTimeout         time.Duration `yaml:"poll_timeout"`

	Retry          RetryConfig   `yaml:"retry"`
	Redis          RedisConfig   `yaml:"redis"`
	ResultCacheTTL time.Duration `yaml:"result_cache_ttl"`
	Log            LogConfig     `yaml:"log"`
}

// RetryConfig overrides the transport retry policy.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// RedisConfig enables the shared cool-down and the result cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads the YAML file at path, if any, and applies the environment.
// An empty path yields a configuration built from the environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment variables named by the Env
// constants. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setString(EnvAccount, &c.Account)
	setString(EnvToken, &c.Token)
	setString(EnvURL, &c.GraphQLURL)
	setString(EnvSyncURL, &c.SyncURL)
	setString(EnvRedisAddr, &c.Redis.Addr)
	setString(EnvLogLevel, &c.Log.Level)

	if v, ok := lookup(EnvMaxWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxWorkers, err)
		}
		c.MaxWorkers = n
	}
	if v, ok := lookup(EnvRequestsPerSecond); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestsPerSecond, err)
		}
		c.RequestsPerSecond = rps
	}
	if v, ok := lookup(EnvResultCacheTTL); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvResultCacheTTL, err)
		}
		c.ResultCacheTTL = ttl
	}
	return nil
}

// RedisClient returns a client for the configured Redis, or nil when no
// address is set.
func (c *Config) RedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// LoggingConfig returns the pkg/logging configuration writing to out.
func (c *Config) LoggingConfig(out io.Writer) (logging.Config, error) {
	cfg := logging.DefaultConfig()
	cfg.Output = out
	cfg.Pretty = c.Log.Pretty
	if c.Log.Level != "" {
		level, ok := logging.ParseLevel(c.Log.Level)
		if !ok {
			return cfg, fmt.Errorf("unknown log level %q", c.Log.Level)
		}
		cfg.Level = level
	}
	return cfg, nil
}

// ClientConfig builds the client configuration. rdb and logger may be nil.
func (c *Config) ClientConfig(rdb *redis.Client, logger *zerolog.Logger) client.Config {
	cfg := client.DefaultConfig(c.Account, c.Token)

	if c.GraphQLURL != "" {
		cfg.GraphQLURL = c.GraphQLURL
	}
	if c.SyncURL != "" {
		cfg.SyncURL = c.SyncURL
	}
	if c.HTTPTimeout > 0 {
		cfg.HTTPTimeout = c.HTTPTimeout
	}
	if c.MaxWorkers > 0 {
		cfg.MaxWorkers = c.MaxWorkers
	}
	if c.PollInterval > 0 {
		cfg.PollInterval = c.PollInterval
	}
	if c.PollTimeout > 0 {
		cfg.PollTimeout = c.PollTimeout
	}
	if c.Retry.MaxAttempts > 0 {
		cfg.Retry.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.InitialBackoff > 0 {
		cfg.Retry.InitialBackoff = c.Retry.InitialBackoff
	}
	if c.Retry.MaxBackoff > 0 {
		cfg.Retry.MaxBackoff = c.Retry.MaxBackoff
	}

	cfg.AllowPartialResults = c.AllowPartialResults
	cfg.RequestsPerSecond = c.RequestsPerSecond
	cfg.Redis = rdb
	if rdb != nil {
		cfg.ResultCacheTTL = c.ResultCacheTTL
	}
	cfg.Logger = logger
	return cfg
}
