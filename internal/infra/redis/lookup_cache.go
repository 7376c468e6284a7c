// Package redis caches enrichment lookups in Redis so every instance behind
// the load balancer shares one warm cache.
package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"betpool-service/internal/app"
	"betpool-service/internal/domain"
	"betpool-service/internal/metrics"
)

// LookupCache stores resolved display records per entity as:
//
//	SET lookup:{kind}:{id} {name} EX ttl
//
// Hits are served straight from Redis; only the missing ids reach the
// underlying lookup, guarded by singleflight so concurrent identical misses
// collapse into one call.
type LookupCache struct {
	client *redis.Client
	next   app.Lookup
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewLookupCache(client *redis.Client, next app.Lookup, ttl time.Duration) *LookupCache {
	return &LookupCache{
		client: client,
		next:   next,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LookupCache) Resolve(ctx context.Context, kind domain.LookupKind, ids []int64) (map[int64]domain.LookupRecord, error) {
	out := make(map[int64]domain.LookupRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(kind, id)
	}

	var missing []int64
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		// Treat an unreachable cache as all-miss; the lookup still answers.
		missing = ids
	} else {
		for i, v := range values {
			name, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			metrics.LookupCache.WithLabelValues("hit").Inc()
			out[ids[i]] = domain.LookupRecord{ID: ids[i], Name: name}
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	sfKey := string(kind)
	for _, id := range missing {
		sfKey += ":" + strconv.FormatInt(id, 10)
	}
	result, err, _ := c.sf.Do(sfKey, func() (interface{}, error) {
		metrics.LookupCache.WithLabelValues("miss").Inc()
		records, err := c.next.Resolve(ctx, kind, missing)
		if err != nil {
			return nil, err
		}
		pipe := c.client.Pipeline()
		for id, rec := range records {
			pipe.Set(ctx, c.key(kind, id), rec.Name, c.ttlWithJitter())
		}
		_, _ = pipe.Exec(ctx)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	for id, rec := range result.(map[int64]domain.LookupRecord) {
		out[id] = rec
	}
	return out, nil
}

func (c *LookupCache) key(kind domain.LookupKind, id int64) string {
	return "lookup:" + string(kind) + ":" + strconv.FormatInt(id, 10)
}

// ttlWithJitter spreads expirations by up to 10% so a burst of lookups does
// not expire as one thundering herd.
func (c *LookupCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
