package memory

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"betpool-service/internal/app"
	"betpool-service/internal/domain"
	"betpool-service/internal/metrics"
)

// CachedLookup wraps a Lookup with a short-lived in-process cache, keyed by
// (kind, sorted unique id list), so repeated identical enrichment requests
// inside the TTL window skip the collaborator entirely.
type CachedLookup struct {
	next  app.Lookup
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedResult
}

type cachedResult struct {
	records   map[int64]domain.LookupRecord
	expiresAt time.Time
}

func NewCachedLookup(next app.Lookup, ttl time.Duration) *CachedLookup {
	return &CachedLookup{
		next:  next,
		ttl:   ttl,
		clock: time.Now,
		cache: make(map[string]cachedResult),
	}
}

// WithClock swaps the time source, for deterministic tests.
func (c *CachedLookup) WithClock(clock func() time.Time) *CachedLookup {
	c.clock = clock
	return c
}

// Invalidate drops every cached result.
func (c *CachedLookup) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]cachedResult)
	c.mu.Unlock()
}

func (c *CachedLookup) Resolve(ctx context.Context, kind domain.LookupKind, ids []int64) (map[int64]domain.LookupRecord, error) {
	if len(ids) == 0 {
		return map[int64]domain.LookupRecord{}, nil
	}
	key := cacheKey(kind, ids)
	now := c.clock()

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		metrics.LookupCache.WithLabelValues("hit").Inc()
		return entry.records, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		entry, ok := c.cache[key]
		c.mu.RUnlock()
		if ok && entry.expiresAt.After(now) {
			return entry.records, nil
		}

		metrics.LookupCache.WithLabelValues("miss").Inc()
		records, err := c.next.Resolve(ctx, kind, ids)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.cache[key] = cachedResult{records: records, expiresAt: now.Add(c.ttl)}
			c.mu.Unlock()
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[int64]domain.LookupRecord), nil
}

// cacheKey sorts ids so the key is independent of request order.
func cacheKey(kind domain.LookupKind, ids []int64) string {
	sorted := append([]int64(nil), ids...)
	slices.Sort(sorted)
	var b strings.Builder
	b.WriteString(string(kind))
	for _, id := range sorted {
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}
