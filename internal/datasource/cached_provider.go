package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/quantlab/internal/metrics"
	"github.com/yourusername/quantlab/internal/models"
)

// CacheKey identifies one historical data request
type CacheKey struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Interval string
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%d:%d:%s", k.Symbol, k.Start.UnixNano(), k.End.UnixNano(), k.Interval)
}

// CachedProvider memoizes bar loads so optimizer and walk-forward trials
// over the same window hit the underlying source once
type CachedProvider struct {
	next      Provider
	cache     *cache.Cache
	ttl       time.Duration
	group     singleflight.Group
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewCachedProvider wraps next with an in-memory cache
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// LoadHistoricalData returns a private copy of the cached bars, loading them on a miss
func (p *CachedProvider) LoadHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	key := CacheKey{Symbol: symbol, Start: start, End: end, Interval: interval}.String()

	if cached, found := p.cache.Get(key); found {
		if bars, ok := cached.([]models.PricePoint); ok {
			p.hitCount.Add(1)
			metrics.RecordCacheHit()
			return copyBars(bars), nil
		}
	}

	p.missCount.Add(1)
	metrics.RecordCacheMiss()

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own ctx is done
	loadCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (interface{}, error) {
		bars, err := p.next.LoadHistoricalData(loadCtx, symbol, start, end, interval)
		if err != nil {
			return nil, err
		}
		p.cache.Set(key, bars, p.ttl)
		return bars, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyBars(res.Val.([]models.PricePoint)), nil
	}
}

// Invalidate drops every cached window for symbol
func (p *CachedProvider) Invalidate(symbol string) {
	prefix := symbol + ":"
	for key := range p.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			p.cache.Delete(key)
		}
	}
}

// Stats returns hit and miss counts
func (p *CachedProvider) Stats() (hits, misses uint64) {
	return p.hitCount.Load(), p.missCount.Load()
}

func copyBars(bars []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, len(bars))
	copy(out, bars)
	return out
}
