package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alex-user-go/stayfinder/internal/obs"
	"github.com/alex-user-go/stayfinder/internal/store"
)

// CachingSource wraps a Source with a shared snapshot store.
// Hotel lists are cached per destination. Price responses are cached only once
// the upstream reports the search as completed, so running searches keep polling.
// Concurrent fetches of the same key are collapsed into one upstream call.
type CachingSource struct {
	next      Source
	store     store.Store
	hotelsTTL time.Duration
	pricesTTL time.Duration
	metrics   *obs.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightFetch
}

type inflightFetch struct {
	done  chan struct{}
	value any
	err   error
}

// NewCachingSource creates a new CachingSource.
func NewCachingSource(next Source, st store.Store, hotelsTTL, pricesTTL time.Duration, metrics *obs.Metrics, logger *slog.Logger) *CachingSource {
	return &CachingSource{
		next:      next,
		store:     st,
		hotelsTTL: hotelsTTL,
		pricesTTL: pricesTTL,
		metrics:   metrics,
		logger:    logger,
		inflight:  make(map[string]*inflightFetch),
	}
}

// Hotels returns the cached hotel list or fetches it from the wrapped source.
func (c *CachingSource) Hotels(ctx context.Context, destinationID string) ([]HotelRecord, error) {
	key := "hotels:" + destinationID

	var cached []HotelRecord
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	v, err := c.collapse(ctx, key, func(ctx context.Context) (any, error) {
		hotels, err := c.next.Hotels(ctx, destinationID)
		if err != nil {
			return nil, err
		}
		c.save(ctx, key, hotels, c.hotelsTTL)
		return hotels, nil
	})
	if err != nil {
		return nil, err
	}
	hotels, _ := v.([]HotelRecord)
	return hotels, nil
}

// Prices returns a cached completed price response or fetches the current snapshot.
func (c *CachingSource) Prices(ctx context.Context, q PriceQuery) (*PriceResponse, error) {
	key := "prices:" + q.Key()

	var cached PriceResponse
	if c.load(ctx, key, &cached) && cached.Completed {
		return &cached, nil
	}

	v, err := c.collapse(ctx, key, func(ctx context.Context) (any, error) {
		resp, err := c.next.Prices(ctx, q)
		if err != nil {
			return nil, err
		}
		if resp != nil && resp.Completed {
			c.save(ctx, key, resp, c.pricesTTL)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp, _ := v.(*PriceResponse)
	return resp, nil
}

func (c *CachingSource) load(ctx context.Context, key string, out any) bool {
	b, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			c.logger.Warn("snapshot cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		c.logger.Warn("snapshot cache entry unreadable", "key", key, "error", err)
		return false
	}
	c.metrics.IncCacheHits()
	return true
}

func (c *CachingSource) save(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("snapshot encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, b, ttl); err != nil {
		c.logger.Warn("snapshot cache write failed", "key", key, "error", err)
	}
}

// collapse runs fetch once per key; concurrent callers share its result.
// The fetch is detached from the caller that started it, so one caller giving
// up never fails the others. Each caller still returns early when its own ctx ends.
func (c *CachingSource) collapse(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	f, ok := c.inflight[key]
	if !ok {
		f = &inflightFetch{done: make(chan struct{})}
		c.inflight[key] = f
		go c.run(context.WithoutCancel(ctx), key, f, fetch)
	}
	c.mu.Unlock()

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// run performs the shared fetch. The upstream client's timeout bounds it.
func (c *CachingSource) run(ctx context.Context, key string, f *inflightFetch, fetch func(context.Context) (any, error)) {
	f.value, f.err = fetch(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(f.done)
}
