package booking

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/wagtee/go-client/api"
	"github.com/wagtee/go-client/chartcache"
)

// AnalyticsOptions selects the optional sections of an analytics report.
type AnalyticsOptions struct {
	Charts   bool
	Heatmap  bool
	Segments bool
}

func (o AnalyticsOptions) params(period string) map[string]any {
	return map[string]any{
		"period":   period,
		"charts":   o.Charts,
		"heatmap":  o.Heatmap,
		"segments": o.Segments,
	}
}

// ExportFormat is the file format of an analytics export.
type ExportFormat string

const (
	ExportCSV   ExportFormat = "csv"
	ExportExcel ExportFormat = "excel"
	ExportPDF   ExportFormat = "pdf"
)

// AnalyticsService reads the analytics endpoints. Reports are served from the
// chart cache when one is configured; realtime metrics are never cached.
type AnalyticsService struct {
	client *api.Client
	cache  *chartcache.Cache
}

// cached serves key from the cache or fetches it, caching only successful results.
func cached[T any](ctx context.Context, cache *chartcache.Cache, key string, fetch func(context.Context) api.Result[T]) api.Result[T] {
	if cache == nil {
		return fetch(ctx)
	}
	var res api.Result[T]
	hit, data, _ := chartcache.Exec(ctx, cache, key, func(ctx context.Context) (T, bool, error) {
		res = fetch(ctx)
		return res.Data, res.Success, nil
	})
	if hit {
		return api.Result[T]{Success: true, Status: http.StatusOK, Data: data}
	}
	return res
}

func (s *AnalyticsService) Analytics(ctx context.Context, period string, opts AnalyticsOptions) api.Result[Analytics] {
	params := opts.params(period)
	key := chartcache.GenerateKey("analytics:overview", params)
	return cached(ctx, s.cache, key, func(ctx context.Context) api.Result[Analytics] {
		return api.Get[Analytics](ctx, s.client, "/base/analytics/"+api.QueryFrom(params))
	})
}

func (s *AnalyticsService) RealtimeMetrics(ctx context.Context) api.Result[Analytics] {
	return api.Get[Analytics](ctx, s.client, "/base/realtime-metrics/")
}

func (s *AnalyticsService) BusinessHealth(ctx context.Context) api.Result[Analytics] {
	return cached(ctx, s.cache, "analytics:health", func(ctx context.Context) api.Result[Analytics] {
		return api.Get[Analytics](ctx, s.client, "/base/business-health/")
	})
}

// Predictive returns forecasts for the next horizon days.
func (s *AnalyticsService) Predictive(ctx context.Context, horizon int) api.Result[Analytics] {
	key := chartcache.GenerateKey("analytics:predictive", map[string]any{"horizon": horizon})
	return cached(ctx, s.cache, key, func(ctx context.Context) api.Result[Analytics] {
		return api.Get[Analytics](ctx, s.client, "/base/predictive-analytics/"+api.NewQuery().Add("horizon", horizon).Build())
	})
}

func (s *AnalyticsService) CustomerSegments(ctx context.Context) api.Result[Analytics] {
	return cached(ctx, s.cache, "analytics:segments", func(ctx context.Context) api.Result[Analytics] {
		return api.Get[Analytics](ctx, s.client, "/base/customer-segments/")
	})
}

func (s *AnalyticsService) ActivityHeatmap(ctx context.Context, year int) api.Result[ActivityHeatmap] {
	key := chartcache.AnalyticsKey(chartcache.KindHeatmap, "year", map[string]any{"year": year})
	return cached(ctx, s.cache, key, func(ctx context.Context) api.Result[ActivityHeatmap] {
		return api.Get[ActivityHeatmap](ctx, s.client, "/base/activity-heatmap/"+api.NewQuery().Add("year", year).Build())
	})
}

func (s *AnalyticsService) ServicePerformance(ctx context.Context, period string) api.Result[ServicePerformance] {
	key := chartcache.AnalyticsKey(chartcache.KindServices, period, nil)
	return cached(ctx, s.cache, key, func(ctx context.Context) api.Result[ServicePerformance] {
		return api.Get[ServicePerformance](ctx, s.client, "/base/service-performance/"+api.NewQuery().Add("period", period).Build())
	})
}

// Export downloads a report file. Data holds the raw file bytes.
func (s *AnalyticsService) Export(ctx context.Context, format ExportFormat, period string, opts AnalyticsOptions) api.Result[[]byte] {
	q := api.NewQuery().
		Add("format", string(format)).
		Add("period", period).
		Add("charts", opts.Charts).
		Add("raw_data", opts.Segments)
	resp := s.client.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/base/export-analytics/" + q.Build(),
		Header: http.Header{"Accept": []string{"*/*"}},
		Raw:    true,
	})
	if !resp.Success {
		return api.ResultOf[[]byte](resp)
	}
	return api.Result[[]byte]{Success: true, Status: resp.Status, Data: []byte(resp.Data), Raw: resp.Data}
}

// Dataset loads one section of the analytics report. It is the loader used by PreWarm.
func (s *AnalyticsService) Dataset(ctx context.Context, kind chartcache.Kind, period string) (any, error) {
	res := api.Get[Analytics](ctx, s.client, "/base/analytics/"+api.QueryFrom(AnalyticsOptions{Charts: true}.params(period)))
	if err := res.Err(); err != nil {
		return nil, err
	}
	section, ok := res.Data[string(kind)]
	if !ok {
		return nil, errors.Newf("analytics report has no %s section", kind)
	}
	return section, nil
}

// Section returns one section of the analytics report through the cache keys
// PreWarm fills, so a warmed section costs no request.
func (s *AnalyticsService) Section(ctx context.Context, kind chartcache.Kind, period string) (any, error) {
	if s.cache == nil {
		return s.Dataset(ctx, kind, period)
	}
	_, data, err := chartcache.Exec(ctx, s.cache, chartcache.AnalyticsKey(kind, period, nil), func(ctx context.Context) (any, bool, error) {
		data, err := s.Dataset(ctx, kind, period)
		return data, err == nil, err
	})
	return data, err
}

// PreWarm loads the common datasets into the cache and returns how many were cached.
func (s *AnalyticsService) PreWarm(ctx context.Context) int {
	if s.cache == nil {
		return 0
	}
	return s.cache.PreWarm(ctx, s.Dataset)
}

// Invalidate drops every cached analytics report.
func (s *AnalyticsService) Invalidate() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.InvalidateAnalytics()
}
