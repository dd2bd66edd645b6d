// Package coordinator sits in front of every outbound quote/status call and
// guarantees that, for identical request keys issued within the TTL window,
// exactly one network call is made regardless of the number of callers.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Opts defines the parameters needed for creating a coordinator with the
// NewCoordinator method.
type Opts struct {
	// MaxRequests is the outbound-request budget per Window.
	MaxRequests int
	// Window is the sliding window of the rate budget.
	Window time.Duration
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// Coordinator deduplicates concurrent requests per key (single-flight),
// caches settled results for a short TTL and throttles bursty callers against
// a global rate budget.
type Coordinator struct {
	group   singleflight.Group
	limiter *rate.Limiter

	mtx    sync.RWMutex
	cache  map[string]cacheEntry
	counts map[string]uint64

	requestCounter *prometheus.CounterVec
}

// NewCoordinator returns a coordinator enforcing the given rate budget.
func NewCoordinator(opts Opts) *Coordinator {
	return &Coordinator{
		limiter: rate.NewLimiter(
			rate.Every(opts.Window/time.Duration(opts.MaxRequests)), opts.MaxRequests,
		),
		cache:  map[string]cacheEntry{},
		counts: map[string]uint64{},
		requestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridged_coordinator_requests_total",
			Help: "Number of outbound requests recorded per tag.",
		}, []string{"tag"}),
	}
}

// Dedupe returns the cached value for key if a live entry exists, otherwise
// it invokes producer, caches the settled result for ttl and returns it.
// All concurrent callers of an in-flight key share the single result. Failed
// results are never cached, so the next caller retries.
func (c *Coordinator) Dedupe(
	ctx context.Context, key string, ttl time.Duration,
	producer func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	if v, ok := c.fromCache(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.fromCache(key); ok {
			return v, nil
		}

		v, err := producer(ctx)
		if err != nil {
			return nil, err
		}

		c.mtx.Lock()
		c.sweepExpired(time.Now())
		c.cache[key] = cacheEntry{value: v, expiresAt: time.Now().Add(ttl)}
		c.mtx.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// WaitForSlot blocks the caller until the global outbound-request budget has
// capacity, or until ctx is cancelled.
func (c *Coordinator) WaitForSlot(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// RecordRequest increments the per-tag request counter.
func (c *Coordinator) RecordRequest(tag string) {
	c.mtx.Lock()
	c.counts[tag]++
	c.mtx.Unlock()
	c.requestCounter.WithLabelValues(tag).Inc()
}

// Count returns the number of requests recorded for tag.
func (c *Coordinator) Count(tag string) uint64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.counts[tag]
}

// Collector exposes the request counters for registration in a prometheus
// registry.
func (c *Coordinator) Collector() prometheus.Collector {
	return c.requestCounter
}

// CacheSize returns the number of cached entries, expired ones included
// until the next insert sweeps them.
func (c *Coordinator) CacheSize() int {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return len(c.cache)
}

// sweepExpired drops every expired entry. Must be called with mtx held.
func (c *Coordinator) sweepExpired(now time.Time) {
	for key, entry := range c.cache {
		if now.After(entry.expiresAt) {
			delete(c.cache, key)
		}
	}
}

func (c *Coordinator) fromCache(key string) (interface{}, bool) {
	c.mtx.RLock()
	entry, ok := c.cache[key]
	c.mtx.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.mtx.Lock()
		if cur, ok := c.cache[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.cache, key)
		}
		c.mtx.Unlock()
		return nil, false
	}
	return entry.value, true
}
