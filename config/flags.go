package config

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/wagtee/go-client/env"
)

// setting is one value settable from the environment (WAGTEE_<NAME>) and a flag (--<name>).
type setting struct {
	name  string
	usage string
	set   func(c *Config, val string) error
}

func (s setting) envName() string {
	return env.Prefix + strings.ToUpper(strings.ReplaceAll(s.name, "-", "_"))
}

func setDuration(dst *Duration) func(string) error {
	return func(val string) error {
		d, err := ParseDuration(val)
		if err == nil {
			*dst = d
		}
		return err
	}
}

func setInt(dst *int) func(string) error {
	return func(val string) error {
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.Wrapf(err, "invalid integer %q", val)
		}
		*dst = n
		return nil
	}
}

var settings = []setting{
	{"base-url", "API base URL", func(c *Config, v string) error { c.BaseURL = v; return nil }},
	{"timeout", "request timeout, retries included", func(c *Config, v string) error { return setDuration(&c.Timeout)(v) }},
	{"retry-attempts", "retries after a 5xx or transport failure", func(c *Config, v string) error { return setInt(&c.RetryAttempts)(v) }},
	{"retry-delay", "base delay between retries, doubled each attempt", func(c *Config, v string) error { return setDuration(&c.RetryDelay)(v) }},
	{"rate-limit", "maximum requests per second, 0 for none", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid number %q", v)
		}
		c.RateLimit = f
		return nil
	}},
	{"rate-burst", "request burst allowed by the rate limit", func(c *Config, v string) error { return setInt(&c.RateBurst)(v) }},
	{"user-agent", "User-Agent header", func(c *Config, v string) error { c.UserAgent = v; return nil }},
	{"breaker-threshold", "consecutive failures that open the circuit, 0 disables it", func(c *Config, v string) error { return setInt(&c.Breaker.Threshold)(v) }},
	{"breaker-cooldown", "how long an open circuit rejects calls", func(c *Config, v string) error { return setDuration(&c.Breaker.Cooldown)(v) }},
	{"token-store", "token store: memory, file or redis", func(c *Config, v string) error { c.Tokens.Store = strings.ToLower(v); return nil }},
	{"token-path", "token file for the file store", func(c *Config, v string) error { c.Tokens.Path = v; return nil }},
	{"redis-url", "redis URL for the redis store", func(c *Config, v string) error { c.Tokens.RedisURL = v; return nil }},
	{"redis-prefix", "redis key prefix", func(c *Config, v string) error { c.Tokens.RedisPrefix = v; return nil }},
	{"cache-max-age", "chart cache entry lifetime", func(c *Config, v string) error { return setDuration(&c.Cache.MaxAge)(v) }},
	{"cache-max-size", "chart cache entry limit", func(c *Config, v string) error { return setInt(&c.Cache.MaxSize)(v) }},
	{"cache-max-memory", "chart cache size limit, e.g. 50Mi", func(c *Config, v string) error {
		b, err := ParseByteSize(v)
		if err == nil {
			c.Cache.MaxMemory = b
		}
		return err
	}},
	{"log-level", "log level: trace, debug, info, warn, error", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{"log-format", "log format: console or json", func(c *Config, v string) error { c.LogFormat = v; return nil }},
}

// AddFlags registers a persistent flag for every setting plus --config and --env-file.
func AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "YAML config file (env "+env.Prefix+"CONFIG)")
	flags.String("env-file", ".env", "dotenv file")
	for _, s := range settings {
		flags.String(s.name, "", s.usage+" (env "+s.envName()+")")
	}
}

// ApplyFlags overrides c with every setting flag given on the command line.
func (c *Config) ApplyFlags(cmd *cobra.Command) error {
	for _, s := range settings {
		f := cmd.Flags().Lookup(s.name)
		if f == nil || !f.Changed {
			continue
		}
		if err := s.set(c, f.Value.String()); err != nil {
			return errors.Wrapf(err, "--%s", s.name)
		}
	}
	return nil
}

// FromCommand loads the full chain for cmd: base, --config, --env-file,
// the process environment and flags. The result is validated.
func FromCommand(cmd *cobra.Command, environ []string, base Config) (Config, error) {
	src := Sources{
		File:    env.FlagOrEnv(cmd, "config", env.Prefix+"CONFIG", ""),
		EnvFile: env.FlagOrEnv(cmd, "env-file", env.Prefix+"ENV_FILE", ""),
		Environ: environ,
	}
	cfg, err := LoadOnto(base, src)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyFlags(cmd); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Env returns the settings as WAGTEE_* variables, ready for env.Write.
func (c Config) Env() []env.Var {
	values := map[string]string{
		"base-url":          c.BaseURL,
		"timeout":           c.Timeout.String(),
		"retry-attempts":    strconv.Itoa(c.RetryAttempts),
		"retry-delay":       c.RetryDelay.String(),
		"rate-limit":        strconv.FormatFloat(c.RateLimit, 'f', -1, 64),
		"rate-burst":        strconv.Itoa(c.RateBurst),
		"user-agent":        c.UserAgent,
		"breaker-threshold": strconv.Itoa(c.Breaker.Threshold),
		"breaker-cooldown":  c.Breaker.Cooldown.String(),
		"token-store":       c.Tokens.Store,
		"token-path":        c.Tokens.Path,
		"redis-url":         c.Tokens.RedisURL,
		"redis-prefix":      c.Tokens.RedisPrefix,
		"cache-max-age":     c.Cache.MaxAge.String(),
		"cache-max-size":    strconv.Itoa(c.Cache.MaxSize),
		"cache-max-memory":  c.Cache.MaxMemory.String(),
		"log-level":         c.LogLevel,
		"log-format":        c.LogFormat,
	}
	vars := make([]env.Var, 0, len(settings))
	for _, s := range settings {
		if v := values[s.name]; v != "" {
			vars = append(vars, env.Var{Key: s.envName(), Val: v})
		}
	}
	return vars
}
