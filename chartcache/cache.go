// Package chartcache keeps derived chart payloads in memory, bounded by age,
// entry count and serialized size.
package chartcache

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	data      any
	timestamp time.Time
	hits      int
	size      int64
}

// Cache is safe for concurrent use. Close stops the background sweep.
type Cache struct {
	ctx       context.Context
	cancel    context.CancelFunc
	entries   map[string]*entry
	memory    int64
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

// New returns a Cache whose sweeper runs until Close or until parent is done.
func New(parent context.Context, opts ...Option) *Cache {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	c := &Cache{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
		cfg:     cfg,
	}
	c.waitGroup.Add(1)
	go c.run()
	return c
}

func (c *Cache) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Close stops the sweeper and waits for it to exit.
func (c *Cache) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Size returns the approximate byte size of data: the length of its JSON encoding.
func Size(data any) (int64, error) {
	buf, err := marshal(data)
	if err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

// Set stores data under key with zero hits. Budgets are enforced before it returns.
// It fails only when data cannot be encoded as JSON.
func (c *Cache) Set(key string, data any) error {
	size, err := Size(data)
	if err != nil {
		return err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if old, ok := c.entries[key]; ok {
		c.memory -= old.size
	}
	c.entries[key] = &entry{data: data, timestamp: c.cfg.now(), hits: 0, size: size}
	c.memory += size
	if len(c.entries) > c.cfg.maxSize || c.memory > c.cfg.maxMemory {
		c.cleanup()
	}
	c.publish()
	return nil
}

func (c *Cache) valid(e *entry, now time.Time) bool {
	return now.Sub(e.timestamp) < c.cfg.maxAge
}

// Get returns the data for key and counts a hit. An expired entry is removed and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.cfg.metrics.CacheMiss()
		return nil, false
	}
	if !c.valid(e, c.cfg.now()) {
		c.remove(key)
		c.cfg.metrics.CacheMiss()
		c.cfg.metrics.CacheEvict("expired", 1)
		c.publish()
		return nil, false
	}
	e.hits++
	c.cfg.metrics.CacheHit()
	return e.data, true
}

// Has reports whether key holds an unexpired entry. It does not count a hit.
func (c *Cache) Has(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[key]
	return ok && c.valid(e, c.cfg.now())
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, ok := c.entries[key]
	if ok {
		c.remove(key)
		c.publish()
	}
	return ok
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mutex.Lock()
	c.entries = make(map[string]*entry)
	c.memory = 0
	c.publish()
	c.mutex.Unlock()
}

// Len returns the number of stored entries, expired ones included until swept.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// MemoryUsage returns the total size of stored entries in bytes.
func (c *Cache) MemoryUsage() int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.memory
}

// Cleanup drops expired entries, then enforces the entry and memory budgets.
func (c *Cache) Cleanup() {
	c.mutex.Lock()
	c.cleanup()
	c.publish()
	c.mutex.Unlock()
}

func (c *Cache) remove(key string) {
	if e, ok := c.entries[key]; ok {
		c.memory -= e.size
		delete(c.entries, key)
	}
}

func (c *Cache) cleanup() {
	now := c.cfg.now()
	var expired int
	for key, e := range c.entries {
		if !c.valid(e, now) {
			c.remove(key)
			expired++
		}
	}
	c.cfg.metrics.CacheEvict("expired", expired)

	if surplus := len(c.entries) - c.cfg.maxSize; surplus > 0 {
		keys := c.sortedKeys(func(a, b *entry) bool {
			if a.hits != b.hits {
				return a.hits < b.hits
			}
			return a.timestamp.Before(b.timestamp)
		})
		for _, key := range keys[:surplus] {
			c.remove(key)
		}
		c.cfg.metrics.CacheEvict("size", surplus)
		c.cfg.logger.Debug("evicted %d entries over the %d entry budget", surplus, c.cfg.maxSize)
	}

	var dropped int
	for c.memory > c.cfg.maxMemory && len(c.entries) > 0 {
		var victim string
		var worst *entry
		for key, e := range c.entries {
			if worst == nil || e.size > worst.size || (e.size == worst.size && (e.hits < worst.hits || (e.hits == worst.hits && key < victim))) {
				victim, worst = key, e
			}
		}
		c.remove(victim)
		dropped++
	}
	if dropped > 0 {
		c.cfg.metrics.CacheEvict("memory", dropped)
		c.cfg.logger.Debug("evicted %d entries over the %d byte budget", dropped, c.cfg.maxMemory)
	}
}

// sortedKeys orders keys by less, breaking ties by key so eviction is deterministic.
func (c *Cache) sortedKeys(less func(a, b *entry) bool) []string {
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := c.entries[keys[i]], c.entries[keys[j]]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (c *Cache) publish() {
	c.cfg.metrics.CacheSize(len(c.entries), c.memory)
}

// InvalidatePattern removes every key matching pattern and returns how many were removed.
func (c *Cache) InvalidatePattern(pattern *regexp.Regexp) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var n int
	for key := range c.entries {
		if pattern.MatchString(key) {
			c.remove(key)
			n++
		}
	}
	c.cfg.metrics.CacheEvict("invalidated", n)
	c.publish()
	return n
}

var analyticsPattern = regexp.MustCompile(`^analytics:`)

// InvalidateAnalytics removes every analytics entry.
func (c *Cache) InvalidateAnalytics() int {
	return c.InvalidatePattern(analyticsPattern)
}

// InvalidatePeriod removes every entry whose key carries period.
func (c *Cache) InvalidatePeriod(period string) int {
	return c.InvalidatePattern(regexp.MustCompile(`period.*` + regexp.QuoteMeta(period)))
}

// EntryStats describes one entry.
type EntryStats struct {
	Key  string        `json:"key"`
	Age  time.Duration `json:"age"`
	Hits int           `json:"hits"`
	Size int64         `json:"size"`
}

// Stats is a snapshot of the cache.
type Stats struct {
	Size        int          `json:"size"`
	MemoryUsage int64        `json:"memory_usage"`
	HitRate     float64      `json:"hit_rate"`
	Entries     []EntryStats `json:"entries"`
}

// Stats returns a snapshot with entries sorted by key. HitRate is hits / (hits + entries).
func (c *Cache) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.cfg.now()
	stats := Stats{Size: len(c.entries), MemoryUsage: c.memory, Entries: make([]EntryStats, 0, len(c.entries))}
	var hits int
	for key, e := range c.entries {
		hits += e.hits
		stats.Entries = append(stats.Entries, EntryStats{Key: key, Age: now.Sub(e.timestamp), Hits: e.hits, Size: e.size})
	}
	sort.Slice(stats.Entries, func(i, j int) bool { return stats.Entries[i].Key < stats.Entries[j].Key })
	if hits > 0 {
		stats.HitRate = float64(hits) / float64(hits+len(c.entries))
	}
	return stats
}

// GenerateKey builds "prefix:a=<json>&b=<json>" with parameter names sorted,
// so the same parameters always give the same key.
func GenerateKey(prefix string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		buf, err := marshal(params[name])
		if err != nil {
			buf = []byte("null")
		}
		parts = append(parts, name+"="+string(buf))
	}
	return prefix + ":" + strings.Join(parts, "&")
}
