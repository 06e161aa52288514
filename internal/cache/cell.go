// Package cache provides TTL cache cells with request coalescing.
//
// A Cell memoizes one async computation per key. Concurrent callers asking for
// the same stale or missing key share a single upstream call, and a failed
// call never evicts the last good value.
package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries bounds a cell unless WithMaxEntries says otherwise.
const DefaultMaxEntries = 1024

// FetchFunc computes the value for key.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

type entry[V any] struct {
	value      V
	computedAt time.Time
}

type options struct {
	clock      clockwork.Clock
	prefetch   float64
	maxEntries int
}

// Option configures a Cell.
type Option func(*options)

// WithClock injects the clock used for freshness checks.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithPrefetch starts a background recompute once a fresh value is older than
// fraction*ttl. A fraction outside (0, 1) disables pre-fetching.
func WithPrefetch(fraction float64) Option {
	return func(o *options) { o.prefetch = fraction }
}

// WithMaxEntries bounds the number of keys kept, least recently used first out.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// Cell is a keyed TTL cache whose misses are coalesced per key.
type Cell[K comparable, V any] struct {
	name     string
	ttl      time.Duration
	prefetch time.Duration
	fetch    FetchFunc[K, V]
	clock    clockwork.Clock
	entries  *lru.Cache
	group    singleflight.Group
}

// NewCell creates a cell named name that keeps values for ttl.
func NewCell[K comparable, V any](name string, ttl time.Duration, fetch FetchFunc[K, V], opts ...Option) *Cell[K, V] {
	o := options{
		clock:      clockwork.NewRealClock(),
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEntries <= 0 {
		o.maxEntries = DefaultMaxEntries
	}

	// lru.New only fails for a non-positive size
	entries, _ := lru.New(o.maxEntries)

	c := &Cell[K, V]{
		name:    name,
		ttl:     ttl,
		fetch:   fetch,
		clock:   o.clock,
		entries: entries,
	}
	if o.prefetch > 0 && o.prefetch < 1 {
		c.prefetch = time.Duration(o.prefetch * float64(ttl))
	}
	return c
}

// Name returns the cell name.
func (c *Cell[K, V]) Name() string { return c.name }

// Get returns the value for key, computing it when absent or older than the TTL.
// Cancelling ctx abandons the wait but not the shared computation.
func (c *Cell[K, V]) Get(ctx context.Context, key K) (V, error) {
	now := c.clock.Now()
	if e, ok := c.lookup(key); ok && now.Before(e.computedAt.Add(c.ttl)) {
		cellRequests.WithLabelValues(c.name, "hit").Inc()
		if c.prefetch > 0 && now.Sub(e.computedAt) >= c.prefetch {
			c.startPrefetch(ctx, key)
		}
		return e.value, nil
	}
	cellRequests.WithLabelValues(c.name, "miss").Inc()

	ch := c.group.DoChan(c.flightKey(key), func() (interface{}, error) {
		return c.compute(context.WithoutCancel(ctx), key)
	})

	var zero V
	select {
	case res := <-ch:
		if res.Shared {
			cellRequests.WithLabelValues(c.name, "shared").Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Peek returns the last computed value for key, fresh or stale, without
// triggering a computation.
func (c *Cell[K, V]) Peek(key K) (V, time.Time, bool) {
	e, ok := c.lookup(key)
	if !ok {
		var zero V
		return zero, time.Time{}, false
	}
	return e.value, e.computedAt, true
}

// Invalidate evicts key so the next Get recomputes it.
func (c *Cell[K, V]) Invalidate(key K) {
	c.entries.Remove(key)
}

// Len returns the number of cached keys.
func (c *Cell[K, V]) Len() int {
	return c.entries.Len()
}

func (c *Cell[K, V]) lookup(key K) (entry[V], bool) {
	raw, ok := c.entries.Get(key)
	if !ok {
		return entry[V]{}, false
	}
	return raw.(entry[V]), true
}

func (c *Cell[K, V]) compute(ctx context.Context, key K) (V, error) {
	v, err := c.fetch(ctx, key)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"cell": c.name,
			"key":  key,
		}).WithError(err).Debug("Cell computation failed")
		return v, err
	}
	c.entries.Add(key, entry[V]{value: v, computedAt: c.clock.Now()})
	return v, nil
}

func (c *Cell[K, V]) startPrefetch(ctx context.Context, key K) {
	cellRequests.WithLabelValues(c.name, "prefetch").Inc()
	// joins a computation already in flight, the buffered channel is dropped
	c.group.DoChan(c.flightKey(key), func() (interface{}, error) {
		return c.compute(context.WithoutCancel(ctx), key)
	})
}

func (c *Cell[K, V]) flightKey(key K) string {
	return fmt.Sprintf("%v", key)
}

var cellRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vault_metrics_cell_requests_total",
		Help: "Cache cell lookups by outcome (hit, miss, shared, prefetch)",
	},
	[]string{"cell", "outcome"},
)

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{cellRequests}
}
