// Package config loads branchdesk settings from a YAML file with
// BRANCHDESK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/logging"
	"github.com/Sternrassler/branchdesk/pkg/pagination"
	"github.com/Sternrassler/branchdesk/pkg/query"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BRANCHDESK_"

// Token store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the complete branchdesk configuration.
type Config struct {
	API     APIConfig         `yaml:"api"`
	Auth    AuthConfig        `yaml:"auth"`
	Redis   RedisConfig       `yaml:"redis"`
	List    ListConfig        `yaml:"list"`
	Export  pagination.Config `yaml:"export"`
	Logging LoggingConfig     `yaml:"logging"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// APIConfig configures the HTTP client.
type APIConfig struct {
	BaseURL   string             `yaml:"base_url"`
	UserAgent string             `yaml:"user_agent"`
	Timeout   time.Duration      `yaml:"timeout"`
	Retry     client.RetryConfig `yaml:"retry"`
}

// AuthConfig selects where tokens live.
type AuthConfig struct {
	// Store is memory, file or redis.
	Store string `yaml:"store"`

	// TokenFile is the FileStore path.
	TokenFile string `yaml:"token_file"`

	// RedisPrefix namespaces RedisStore keys.
	RedisPrefix string `yaml:"redis_prefix"`

	// Token is a fixed bearer token used when the store has none.
	Token string `yaml:"token,omitempty"`
}

// RedisConfig configures the shared Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`

	// Cache enables the ETag response cache.
	Cache bool `yaml:"cache"`
}

// ListConfig holds list view defaults.
type ListConfig struct {
	Limit    int           `yaml:"limit"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig mirrors logging.Config in file form.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `yaml:"addr"`
}

// DefaultTokenFile returns ~/.config/branchdesk/tokens.yaml, or a relative
// path when the home directory is unknown.
func DefaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".branchdesk", "tokens.yaml")
	}
	return filepath.Join(dir, "branchdesk", "tokens.yaml")
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "branchdesk.yaml"
	}
	return filepath.Join(dir, "branchdesk", "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000",
			UserAgent: "branchdesk/0.1.0",
			Timeout:   30 * time.Second,
			Retry:     client.DefaultRetryConfig(),
		},
		Auth: AuthConfig{
			Store:       StoreFile,
			TokenFile:   DefaultTokenFile(),
			RedisPrefix: "branchdesk:auth",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		List: ListConfig{
			Limit:    query.DefaultLimit,
			Debounce: query.DefaultDebounce,
		},
		Export: pagination.DefaultConfig(),
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func getEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	return v, ok && v != ""
}

// applyEnvOverrides applies BRANCHDESK_* variables.
func (c *Config) applyEnvOverrides() error {
	if v, ok := getEnv("API_URL"); ok {
		c.API.BaseURL = v
	}
	if v, ok := getEnv("USER_AGENT"); ok {
		c.API.UserAgent = v
	}
	if v, ok := getEnv("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
		c.API.Timeout = d
	}
	if v, ok := getEnv("TOKEN"); ok {
		c.Auth.Token = v
	}
	if v, ok := getEnv("TOKEN_STORE"); ok {
		c.Auth.Store = v
	}
	if v, ok := getEnv("TOKEN_FILE"); ok {
		c.Auth.TokenFile = v
	}
	if v, ok := getEnv("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnv("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		c.Redis.DB = n
	}
	if v, ok := getEnv("CACHE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCACHE: %w", EnvPrefix, err)
		}
		c.Redis.Cache = b
	}
	if v, ok := getEnv("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := getEnv("METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.API.Retry.MaxAttempts < 1 {
		return errors.New("api.retry.max_attempts must be at least 1")
	}

	switch c.Auth.Store {
	case StoreMemory, StoreRedis:
	case StoreFile:
		if c.Auth.TokenFile == "" {
			return errors.New("auth.token_file is required for the file store")
		}
	default:
		return fmt.Errorf("auth.store %q must be memory, file or redis", c.Auth.Store)
	}

	if (c.Auth.Store == StoreRedis || c.Redis.Cache) && c.Redis.Addr == "" {
		return errors.New("redis.addr is required for the redis store and the response cache")
	}
	if !logging.LogLevel(c.Logging.Level).Valid() {
		return fmt.Errorf("logging.level %q must be debug, info, warn, error or disabled", c.Logging.Level)
	}
	if c.List.Limit < 1 {
		return errors.New("list.limit must be at least 1")
	}
	if c.List.Debounce < 0 {
		return errors.New("list.debounce must not be negative")
	}
	if c.Export.MaxConcurrency < 1 {
		return errors.New("export.max_concurrency must be at least 1")
	}
	return nil
}

// ClientConfig builds the HTTP client configuration. Tokens, cache and the
// unauthorized hook are wired by the caller.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.API.BaseURL)
	cfg.UserAgent = c.API.UserAgent
	cfg.Timeout = c.API.Timeout
	cfg.Retry = c.API.Retry
	cfg.StaticToken = c.Auth.Token
	return cfg
}

// LoggerConfig builds the logging configuration.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
