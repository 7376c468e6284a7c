package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"betpool-service/internal/domain"
)

type countingLookup struct {
	calls   int64
	records map[int64]domain.LookupRecord
}

func (l *countingLookup) Resolve(_ context.Context, _ domain.LookupKind, ids []int64) (map[int64]domain.LookupRecord, error) {
	atomic.AddInt64(&l.calls, 1)
	out := make(map[int64]domain.LookupRecord, len(ids))
	for _, id := range ids {
		if rec, ok := l.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func newTestCache(t *testing.T, ttl time.Duration) (*LookupCache, *miniredis.Miniredis, *countingLookup) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	inner := &countingLookup{records: map[int64]domain.LookupRecord{
		1: {ID: 1, Name: "alice"},
		2: {ID: 2, Name: "bob"},
	}}
	return NewLookupCache(client, inner, ttl), mr, inner
}

func TestResolvePopulatesAndServesFromRedis(t *testing.T) {
	cache, mr, inner := newTestCache(t, time.Minute)
	ctx := context.Background()

	records, err := cache.Resolve(ctx, domain.LookupUser, []int64{1, 2})
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if records[1].Name != "alice" || records[2].Name != "bob" {
		t.Fatalf("first resolve returned %v", records)
	}
	if got, err := mr.Get("lookup:user:1"); err != nil || got != "alice" {
		t.Fatalf("redis key lookup:user:1 = (%q, %v)", got, err)
	}

	records, err = cache.Resolve(ctx, domain.LookupUser, []int64{1, 2})
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if records[2].Name != "bob" {
		t.Fatalf("second resolve returned %v", records)
	}
	if inner.calls != 1 {
		t.Fatalf("inner resolver fired %d times, want 1", inner.calls)
	}
}

func TestResolveFetchesOnlyMissingIDs(t *testing.T) {
	cache, mr, inner := newTestCache(t, time.Minute)
	ctx := context.Background()

	mr.Set("lookup:user:1", "alice")

	records, err := cache.Resolve(ctx, domain.LookupUser, []int64{1, 2})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if records[1].Name != "alice" || records[2].Name != "bob" {
		t.Fatalf("resolve returned %v", records)
	}
	if inner.calls != 1 {
		t.Fatalf("inner resolver fired %d times, want 1 for the missing id", inner.calls)
	}
	if got, err := mr.Get("lookup:user:2"); err != nil || got != "bob" {
		t.Fatalf("missing id not backfilled: (%q, %v)", got, err)
	}
}

func TestResolveAfterExpiry(t *testing.T) {
	cache, mr, inner := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, err := cache.Resolve(ctx, domain.LookupUser, []int64{1}); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	records, err := cache.Resolve(ctx, domain.LookupUser, []int64{1})
	if err != nil {
		t.Fatalf("resolve after expiry failed: %v", err)
	}
	if records[1].Name != "alice" {
		t.Fatalf("resolve after expiry returned %v", records)
	}
	if inner.calls != 2 {
		t.Fatalf("inner resolver fired %d times across expiry, want 2", inner.calls)
	}
}

func TestResolveUnknownIDsStayAbsent(t *testing.T) {
	cache, _, _ := newTestCache(t, time.Minute)

	records, err := cache.Resolve(context.Background(), domain.LookupUser, []int64{99})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("unknown id resolved to %v", records)
	}
}

func TestResolveSurvivesRedisOutage(t *testing.T) {
	cache, mr, inner := newTestCache(t, time.Minute)
	mr.Close()

	records, err := cache.Resolve(context.Background(), domain.LookupUser, []int64{1})
	if err != nil {
		t.Fatalf("resolve with cache down failed: %v", err)
	}
	if records[1].Name != "alice" {
		t.Fatalf("resolve with cache down returned %v", records)
	}
	if inner.calls != 1 {
		t.Fatalf("inner resolver fired %d times, want 1", inner.calls)
	}
}
