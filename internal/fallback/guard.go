// Package fallback serves the last good result of an operation while its
// upstreams are failing, up to a maximum age.
package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// State represents the outcome of the most recent call through the guard
type State int

// Guard states
const (
	StateEmpty  State = iota // No call has completed yet
	StateLive                // Last call succeeded
	StateStale               // Last call failed, a cached value was served
	StateFailed              // Last call failed with nothing usable cached
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateStale:
		return "stale"
	case StateFailed:
		return "failed"
	default:
		return "empty"
	}
}

// Status is a point-in-time view of a guard for the status endpoint.
type Status struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	StoredAt  time.Time `json:"storedAt,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

// Guard remembers the last successful result of fn and returns it when fn
// fails, as long as it is younger than maxAge.
type Guard[T any] struct {
	name   string
	maxAge time.Duration
	clock  clockwork.Clock

	// Mutex for the cached value and state
	mu        sync.RWMutex
	value     T
	hasValue  bool
	storedAt  time.Time
	expiresAt time.Time
	state     State
	lastErr   error

	// Event callback for monitoring
	onFallback func(err error, age time.Duration)
}

// New creates a Guard that serves stale values for at most maxAge.
func New[T any](name string, maxAge time.Duration) *Guard[T] {
	return &Guard[T]{
		name:   name,
		maxAge: maxAge,
		clock:  clockwork.NewRealClock(),
	}
}

// WithClock sets the clock used for expiry and returns the guard
func (g *Guard[T]) WithClock(clock clockwork.Clock) *Guard[T] {
	g.clock = clock
	return g
}

// WithFallbackCallback sets a function called whenever a stale value is served
func (g *Guard[T]) WithFallbackCallback(fn func(err error, age time.Duration)) *Guard[T] {
	g.onFallback = fn
	return g
}

// Call runs fn. On success the result is cached until now+maxAge. On failure
// the cached result is returned while unexpired, otherwise the error is.
func (g *Guard[T]) Call(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil {
		g.value = v
		g.hasValue = true
		g.storedAt = now
		g.expiresAt = now.Add(g.maxAge)
		g.state = StateLive
		g.lastErr = nil
		return v, nil
	}

	g.lastErr = err
	if g.hasValue && now.Before(g.expiresAt) {
		g.state = StateStale
		age := now.Sub(g.storedAt)
		fallbacksTotal.WithLabelValues(g.name).Inc()
		logrus.WithFields(logrus.Fields{
			"guard": g.name,
			"age":   age,
		}).WithError(err).Warn("Serving cached value after failure")
		if g.onFallback != nil {
			go g.onFallback(err, age)
		}
		return g.value, nil
	}

	g.state = StateFailed
	var zero T
	return zero, err
}

// State returns the outcome of the last call
func (g *Guard[T]) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Last returns the cached value regardless of its age.
func (g *Guard[T]) Last() (T, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value, g.hasValue
}

// Status returns a snapshot of the guard for reporting
func (g *Guard[T]) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Status{
		Name:      g.name,
		State:     g.state.String(),
		StoredAt:  g.storedAt,
		ExpiresAt: g.expiresAt,
	}
	if g.lastErr != nil {
		s.LastError = g.lastErr.Error()
	}
	return s
}

var fallbacksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vault_metrics_fallbacks_total",
		Help: "Number of calls answered with a cached value after a failure",
	},
	[]string{"guard"},
)

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{fallbacksTotal}
}
