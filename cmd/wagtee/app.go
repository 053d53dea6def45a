package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wagtee/go-client/api"
	"github.com/wagtee/go-client/booking"
	"github.com/wagtee/go-client/chartcache"
	"github.com/wagtee/go-client/config"
	"github.com/wagtee/go-client/env"
	"github.com/wagtee/go-client/logger"
	"github.com/wagtee/go-client/metrics"
	"github.com/wagtee/go-client/session"
	cstr "github.com/wagtee/go-client/string"
	"github.com/wagtee/go-client/telemetry"
)

// app holds everything a command needs. It is built once per invocation.
type app struct {
	cfg      config.Config
	log      logger.Logger
	registry *prometheus.Registry
	client   *booking.Client
	cache    *chartcache.Cache
	session  *session.Session

	closers []func() error
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "wagtee", "credentials.db")
}

func newApp(cmd *cobra.Command, environ []string) (*app, error) {
	base := config.Default()
	base.Tokens = config.TokenConfig{Store: config.StoreFile, Path: defaultTokenPath(), RedisPrefix: "wagtee"}
	cfg, err := config.FromCommand(cmd, environ, base)
	if err != nil {
		return nil, err
	}
	if cfg.Tokens.Store == config.StoreFile {
		if err := os.MkdirAll(filepath.Dir(cfg.Tokens.Path), 0o700); err != nil {
			return nil, errors.Wrap(err, "create token directory")
		}
	}

	ctx := cmd.Context()
	a := &app{cfg: cfg, log: cfg.Logger(), registry: prometheus.NewRegistry()}

	if endpoint := flagOrEnviron(cmd, environ, "otlp-url"); endpoint != "" {
		shutdown, err := telemetry.New(ctx, telemetry.Config{
			Endpoint:    endpoint,
			AuthToken:   flagOrEnviron(cmd, environ, "otlp-token"),
			ServiceName: "wagtee-cli",
			Version:     api.Version,
		}, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return shutdown(context.Background()) })
	}

	storage, closeStorage, err := cfg.OpenStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeStorage)
	switch cfg.Tokens.Store {
	case config.StoreFile:
		a.log.Debug("credentials in %s", cfg.Tokens.Path)
	case config.StoreRedis:
		a.log.Debug("credentials in %s", cstr.MaskURL(cfg.Tokens.RedisURL))
	}

	m := metrics.New(a.registry)
	a.cache = chartcache.New(ctx, cfg.CacheOptions(a.log, m)...)
	a.closers = append(a.closers, a.cache.Close)

	httpClient := api.New(cfg.BaseURL, storage, cfg.ClientOptions(a.log, m)...)
	a.client = booking.New(httpClient, booking.WithCache(a.cache))
	a.session = session.New(ctx, a.client, session.WithAutoRefresh(false), session.WithLogger(a.log))
	a.closers = append(a.closers, a.session.Close)
	return a, nil
}

// flagOrEnviron reads --name, then WAGTEE_NAME from environ.
func flagOrEnviron(cmd *cobra.Command, environ []string, name string) string {
	if f := cmd.Flags().Lookup(name); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	key := env.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	for _, kv := range environ {
		if v := env.ParseLine(kv); v.Key == key {
			return v.Val
		}
	}
	return ""
}

// Close releases resources in reverse order of creation.
func (a *app) Close() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	a.closers = nil
	return errs
}

// requireSession restores the stored session or fails with a hint to log in.
func (a *app) requireSession(ctx context.Context) error {
	ok, err := a.session.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("not logged in, run: wagtee login")
	}
	return nil
}
