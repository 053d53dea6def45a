package chartcache

import (
	"time"

	"github.com/wagtee/go-client/logger"
	"github.com/wagtee/go-client/metrics"
)

const (
	// DefaultMaxAge is how long an entry stays readable.
	DefaultMaxAge = 5 * time.Minute
	// DefaultMaxSize is the maximum number of entries.
	DefaultMaxSize = 100
	// DefaultMaxMemory is the maximum total serialized size in bytes.
	DefaultMaxMemory int64 = 50 * 1024 * 1024
)

type config struct {
	maxAge          time.Duration
	maxSize         int
	maxMemory       int64
	cleanupInterval time.Duration
	now             func() time.Time
	logger          logger.Logger
	metrics         *metrics.Metrics
}

// Option configures a Cache.
type Option func(*config)

func defaultConfig() config {
	return config{
		maxAge:    DefaultMaxAge,
		maxSize:   DefaultMaxSize,
		maxMemory: DefaultMaxMemory,
		now:       time.Now,
		logger:    logger.NewConsoleLogger(logger.LevelWarn),
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAge <= 0 {
		cfg.maxAge = DefaultMaxAge
	}
	if cfg.maxSize <= 0 {
		cfg.maxSize = DefaultMaxSize
	}
	if cfg.maxMemory <= 0 {
		cfg.maxMemory = DefaultMaxMemory
	}
	if cfg.cleanupInterval <= 0 {
		cfg.cleanupInterval = cfg.maxAge / 2
	}
	return cfg
}

// WithMaxAge sets how long an entry stays readable. Defaults to DefaultMaxAge.
func WithMaxAge(d time.Duration) Option {
	return func(c *config) { c.maxAge = d }
}

// WithMaxSize sets the entry budget. Defaults to DefaultMaxSize.
func WithMaxSize(n int) Option {
	return func(c *config) { c.maxSize = n }
}

// WithMaxMemory sets the byte budget. Defaults to DefaultMaxMemory.
func WithMaxMemory(n int64) Option {
	return func(c *config) { c.maxMemory = n }
}

// WithCleanupInterval sets the background sweep period. Defaults to half of max age.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *config) { c.cleanupInterval = d }
}

// WithClock replaces time.Now for entry ages.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.logger = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}
