package chartcache

import (
	"context"
	"encoding/json"
	"sync"
)

// Kind names an analytics dataset.
type Kind string

const (
	KindRevenue   Kind = "revenue"
	KindBookings  Kind = "bookings"
	KindCustomers Kind = "customers"
	KindServices  Kind = "services"
	KindHeatmap   Kind = "heatmap"
)

// AnalyticsKey is the key for an analytics dataset: "analytics:<kind>:period=...&<filters>".
func AnalyticsKey(kind Kind, period string, filters map[string]any) string {
	params := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		params[k] = v
	}
	params["period"] = period
	return GenerateKey("analytics:"+string(kind), params)
}

// SetAnalytics caches an analytics dataset.
func (c *Cache) SetAnalytics(kind Kind, period string, filters map[string]any, data any) error {
	return c.Set(AnalyticsKey(kind, period, filters), data)
}

// GetAnalytics returns a cached analytics dataset.
func (c *Cache) GetAnalytics(kind Kind, period string, filters map[string]any) (any, bool) {
	return c.Get(AnalyticsKey(kind, period, filters))
}

// ChartConfigKey is the key for a chart configuration: "config:<chartType>:<params>".
func ChartConfigKey(chartType string, params map[string]any) string {
	return GenerateKey("config:"+chartType, params)
}

func (c *Cache) SetChartConfig(chartType string, params map[string]any, cfg any) error {
	return c.Set(ChartConfigKey(chartType, params), cfg)
}

func (c *Cache) GetChartConfig(chartType string, params map[string]any) (any, bool) {
	return c.Get(ChartConfigKey(chartType, params))
}

// Get returns the value for key as T. A stored value of another type is converted
// through its JSON form; a value that does not convert is a miss.
func Get[T any](c *Cache, key string) (T, bool) {
	var zero T
	val, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	if typed, ok := val.(T); ok {
		return typed, true
	}
	buf, err := json.Marshal(val)
	if err != nil {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(buf, &out); err != nil {
		return zero, false
	}
	return out, true
}

// Loader produces the dataset for kind and period.
type Loader func(ctx context.Context, kind Kind, period string) (any, error)

// Query is one (kind, period) pair.
type Query struct {
	Kind   Kind
	Period string
}

// CommonQueries are the datasets PreWarm loads.
var CommonQueries = []Query{
	{KindRevenue, "month"},
	{KindBookings, "month"},
	{KindCustomers, "month"},
	{KindRevenue, "week"},
	{KindBookings, "week"},
}

// PreWarm loads CommonQueries concurrently and caches each under its analytics key.
// Failures are logged and skipped; the number of cached datasets is returned.
func (c *Cache) PreWarm(ctx context.Context, load Loader) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var warmed int
	for _, q := range CommonQueries {
		wg.Add(1)
		go func(q Query) {
			defer wg.Done()
			data, err := load(ctx, q.Kind, q.Period)
			if err == nil {
				err = c.SetAnalytics(q.Kind, q.Period, nil, data)
			}
			if err != nil {
				c.cfg.logger.Warn("failed to pre-warm cache for %s:%s: %s", q.Kind, q.Period, err)
				return
			}
			mu.Lock()
			warmed++
			mu.Unlock()
		}(q)
	}
	wg.Wait()
	return warmed
}

// Invoker produces a value of type T. Returning false means "nothing to cache".
type Invoker[T any] func(ctx context.Context) (T, bool, error)

// Exec is a cache-aside helper. On a hit the cached value is returned with found=true.
// On a miss invoke runs; a found value is stored and returned. Errors from invoke
// are propagated and nothing is cached. A value that cannot be encoded is still returned.
func Exec[T any](ctx context.Context, c *Cache, key string, invoke Invoker[T]) (bool, T, error) {
	if val, ok := Get[T](c, key); ok {
		return true, val, nil
	}
	result, ok, err := invoke(ctx)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if !ok {
		var zero T
		return false, zero, nil
	}
	if err := c.Set(key, result); err != nil {
		c.cfg.logger.Warn("failed to cache %s: %s", key, err)
	}
	return true, result, nil
}
