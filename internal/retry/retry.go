// Package retry wraps unreliable upstream reads with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-metrics/internal/fault"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	// Name labels log lines and metrics
	Name string
	// MaxAttempts counts invocations, the first one included
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// DefaultPolicy is five retries after the first attempt, waiting 2s doubling up to 20s.
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:        name,
		MaxAttempts: 6,
		MinBackoff:  2 * time.Second,
		MaxBackoff:  20 * time.Second,
	}
}

// ExhaustedError is returned once every attempt of a policy has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", fault.ErrRetryExhausted, e.Attempts, e.Err)
}

// Unwrap returns the error of the last attempt.
func (e *ExhaustedError) Unwrap() error { return e.Err }

// Is matches fault.ErrRetryExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == fault.ErrRetryExhausted
}

var (
	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_metrics_retries_total",
			Help: "Number of retried upstream calls",
		},
		[]string{"policy"},
	)
	exhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_metrics_retry_exhausted_total",
			Help: "Number of upstream calls that failed on every attempt",
		},
		[]string{"policy"},
	)
)

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{retriesTotal, exhaustedTotal}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.MinBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	retries := 0
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do invokes fn until it succeeds, returns a data integrity error, or the
// policy runs out of attempts. Context cancellation stops waiting between attempts.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result   T
		attempts int
	)

	op := func() error {
		attempts++
		v, err := fn(ctx)
		if err != nil {
			if fault.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		retriesTotal.WithLabelValues(p.Name).Inc()
		logrus.WithFields(logrus.Fields{
			"policy":  p.Name,
			"attempt": attempts,
			"wait":    wait,
		}).WithError(err).Debug("Retrying upstream call")
	}

	err := backoff.RetryNotify(op, p.backOff(ctx), notify)
	if err == nil {
		return result, nil
	}

	var zero T
	if fault.IsPermanent(err) || ctx.Err() != nil {
		return zero, err
	}

	exhaustedTotal.WithLabelValues(p.Name).Inc()
	logrus.WithFields(logrus.Fields{
		"policy":   p.Name,
		"attempts": attempts,
	}).WithError(err).Warn("Retry attempts exhausted")
	return zero, &ExhaustedError{Attempts: attempts, Err: err}
}
