// Package config loads client settings from defaults, a YAML file, a dotenv file,
// the process environment and command-line flags, in that order.
package config

import (
	"context"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/wagtee/go-client/api"
	"github.com/wagtee/go-client/chartcache"
	"github.com/wagtee/go-client/env"
	"github.com/wagtee/go-client/logger"
	"github.com/wagtee/go-client/metrics"
	"github.com/wagtee/go-client/resilience"
	"github.com/wagtee/go-client/tokens"
)

// Token store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit. 0 disables it.
	Threshold int      `yaml:"threshold"`
	Cooldown  Duration `yaml:"cooldown"`
}

type TokenConfig struct {
	Store       string `yaml:"store"`
	Path        string `yaml:"path,omitempty"`
	RedisURL    string `yaml:"redis_url,omitempty"`
	RedisPrefix string `yaml:"redis_prefix,omitempty"`
}

type CacheConfig struct {
	MaxAge          Duration `yaml:"max_age"`
	MaxSize         int      `yaml:"max_size"`
	MaxMemory       ByteSize `yaml:"max_memory"`
	CleanupInterval Duration `yaml:"cleanup_interval,omitempty"`
}

type Config struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       Duration      `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    Duration      `yaml:"retry_delay"`
	RateLimit     float64       `yaml:"rate_limit,omitempty"`
	RateBurst     int           `yaml:"rate_burst,omitempty"`
	UserAgent     string        `yaml:"user_agent,omitempty"`
	Breaker       BreakerConfig `yaml:"circuit_breaker"`
	Tokens        TokenConfig   `yaml:"tokens"`
	Cache         CacheConfig   `yaml:"cache"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:       api.DefaultBaseURL,
		Timeout:       Duration(api.DefaultTimeout),
		RetryAttempts: api.DefaultRetryAttempts,
		RetryDelay:    Duration(api.DefaultRetryDelay),
		Breaker:       BreakerConfig{Cooldown: Duration(30 * time.Second)},
		Tokens:        TokenConfig{Store: StoreMemory, RedisPrefix: "wagtee"},
		Cache: CacheConfig{
			MaxAge:    Duration(chartcache.DefaultMaxAge),
			MaxSize:   chartcache.DefaultMaxSize,
			MaxMemory: ByteSize(chartcache.DefaultMaxMemory),
		},
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Sources names where Load reads from. Empty fields are skipped.
type Sources struct {
	// File is a YAML file; it must exist when set.
	File string
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
	// Environ is the process environment in KEY=value form, usually os.Environ().
	Environ []string
}

// Load layers Default, File, EnvFile and Environ. Flags are applied separately with ApplyFlags.
func Load(src Sources) (Config, error) {
	return LoadOnto(Default(), src)
}

// LoadOnto is Load starting from base instead of Default.
func LoadOnto(base Config, src Sources) (Config, error) {
	cfg := base
	if src.File != "" {
		buf, err := os.ReadFile(src.File)
		if err != nil {
			return cfg, errors.Wrapf(err, "config: read %s", src.File)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "config: parse %s", src.File)
		}
	}
	if src.EnvFile != "" {
		vars, err := env.ParseFile(src.EnvFile)
		if err != nil {
			return cfg, err
		}
		if err := cfg.applyEnv(env.Map(vars)); err != nil {
			return cfg, errors.Wrapf(err, "config: %s", src.EnvFile)
		}
	}
	if len(src.Environ) > 0 {
		environ := make(map[string]string, len(src.Environ))
		for _, kv := range src.Environ {
			v := env.ParseLine(kv)
			environ[v.Key] = v.Val
		}
		if err := cfg.applyEnv(environ); err != nil {
			return cfg, errors.Wrap(err, "config: environment")
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv(vars map[string]string) error {
	for _, s := range settings {
		val, ok := vars[s.envName()]
		if !ok || val == "" {
			continue
		}
		if err := s.set(c, val); err != nil {
			return errors.Wrapf(err, "%s", s.envName())
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Newf("config: base_url %q must be an absolute URL", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.RetryAttempts < 0 {
		return errors.New("config: retry_attempts must be >= 0")
	}
	if c.RetryDelay < 0 {
		return errors.New("config: retry_delay must be >= 0")
	}
	if !slices.Contains([]string{StoreMemory, StoreFile, StoreRedis}, c.Tokens.Store) {
		return errors.Newf("config: unknown token store %q", c.Tokens.Store)
	}
	if c.Tokens.Store == StoreFile && c.Tokens.Path == "" {
		return errors.New("config: tokens.path is required for the file store")
	}
	if c.Tokens.Store == StoreRedis && c.Tokens.RedisURL == "" {
		return errors.New("config: tokens.redis_url is required for the redis store")
	}
	if c.Cache.MaxSize <= 0 || c.Cache.MaxMemory <= 0 || c.Cache.MaxAge <= 0 {
		return errors.New("config: cache limits must be positive")
	}
	return nil
}

// Logger builds the logger named by LogLevel and LogFormat.
func (c Config) Logger() logger.Logger {
	level := logger.ParseLevel(c.LogLevel, logger.LevelInfo)
	if strings.EqualFold(c.LogFormat, "json") {
		return logger.NewJSONLogger(level)
	}
	return logger.NewConsoleLogger(level)
}

// ClientOptions converts the HTTP settings into api options.
func (c Config) ClientOptions(log logger.Logger, m *metrics.Metrics) []api.Option {
	opts := []api.Option{
		api.WithLogger(log),
		api.WithTimeout(c.Timeout.Std()),
		api.WithRetryAttempts(c.RetryAttempts),
		api.WithRetryDelay(c.RetryDelay.Std()),
		api.WithMetrics(m),
	}
	if c.UserAgent != "" {
		opts = append(opts, api.WithUserAgent(c.UserAgent))
	}
	if c.RateLimit > 0 {
		opts = append(opts, api.WithRateLimit(c.RateLimit, c.RateBurst))
	}
	if c.Breaker.Threshold > 0 {
		cb := resilience.DefaultCircuitBreakerConfig()
		cb.MaxFailures = c.Breaker.Threshold
		if c.Breaker.Cooldown > 0 {
			cb.Timeout = c.Breaker.Cooldown.Std()
		}
		opts = append(opts, api.WithCircuitBreaker(cb))
	}
	return opts
}

// CacheOptions converts the cache settings into chartcache options.
func (c Config) CacheOptions(log logger.Logger, m *metrics.Metrics) []chartcache.Option {
	opts := []chartcache.Option{
		chartcache.WithMaxAge(c.Cache.MaxAge.Std()),
		chartcache.WithMaxSize(c.Cache.MaxSize),
		chartcache.WithMaxMemory(int64(c.Cache.MaxMemory)),
		chartcache.WithLogger(log),
		chartcache.WithMetrics(m),
	}
	if c.Cache.CleanupInterval > 0 {
		opts = append(opts, chartcache.WithCleanupInterval(c.Cache.CleanupInterval.Std()))
	}
	return opts
}

// OpenStorage opens the configured token store. The returned close function
// releases the file lock or redis connection.
func (c Config) OpenStorage(ctx context.Context) (tokens.Storage, func() error, error) {
	switch c.Tokens.Store {
	case StoreFile:
		fs, err := tokens.NewFile(c.Tokens.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil
	case StoreRedis:
		opts, err := redis.ParseURL(c.Tokens.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "config: redis_url")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, errors.Wrap(err, "config: redis ping")
		}
		return tokens.NewRedis(client, c.Tokens.RedisPrefix), client.Close, nil
	}
	return tokens.NewMemory(), func() error { return nil }, nil
}
