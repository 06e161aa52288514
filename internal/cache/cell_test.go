package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterFetch(calls *int32) FetchFunc[string, int] {
	return func(ctx context.Context, key string) (int, error) {
		return int(atomic.AddInt32(calls, 1)), nil
	}
}

func TestCellFreshValueSkipsFetch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls int32
	c := NewCell("test", time.Minute, counterFetch(&calls), WithClock(clock))

	v, err := c.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(59 * time.Second)
	v, err = c.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCellStaleValueRecomputes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls int32
	c := NewCell("test", time.Minute, counterFetch(&calls), WithClock(clock))

	_, err := c.Get(context.Background(), "a")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	v, err := c.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestCellKeysAreIndependent(t *testing.T) {
	var calls int32
	c := NewCell("test", time.Minute, counterFetch(&calls), WithClock(clockwork.NewFakeClock()))

	a, _ := c.Get(context.Background(), "a")
	b, _ := c.Get(context.Background(), "b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, c.Len())
}

func TestCellCoalescesConcurrentCallers(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	c := NewCell("test", time.Minute, func(ctx context.Context, key string) (int, error) {
		atomic.AddInt32(&calls, 1)
		once.Do(func() { close(started) })
		<-release
		return 7, nil
	}, WithClock(clockwork.NewFakeClock()))

	const callers = 20
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "k")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}

func TestCellFailureKeepsPreviousValue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fail := false
	c := NewCell("test", time.Minute, func(ctx context.Context, key string) (string, error) {
		if fail {
			return "", errors.New("upstream down")
		}
		return "good", nil
	}, WithClock(clock))

	_, err := c.Get(context.Background(), "k")
	require.NoError(t, err)

	fail = true
	clock.Advance(2 * time.Minute)
	_, err = c.Get(context.Background(), "k")
	require.EqualError(t, err, "upstream down")

	v, computedAt, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, "good", v)
	assert.Equal(t, clock.Now().Add(-2*time.Minute), computedAt)
}

func TestCellFailureIsNotCached(t *testing.T) {
	var calls int32
	c := NewCell("test", time.Minute, func(ctx context.Context, key string) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return 0, errors.New("flaky")
		}
		return 5, nil
	}, WithClock(clockwork.NewFakeClock()))

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)

	v, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestCellPrefetch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls int32
	c := NewCell("test", time.Minute, counterFetch(&calls), WithClock(clock), WithPrefetch(0.5))

	v, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(40 * time.Second)
	v, err = c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 1, v, "caller still gets the current value")

	require.Eventually(t, func() bool {
		v, _, _ := c.Peek("k")
		return v == 2
	}, time.Second, 5*time.Millisecond)
}

func TestCellCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	clock := clockwork.NewFakeClock()
	c := NewCell("test", time.Minute, func(ctx context.Context, key string) (int, error) {
		defer close(done)
		<-release
		return 3, ctx.Err()
	}, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "k")
		errCh <- err
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	<-done
	require.Eventually(t, func() bool {
		v, _, ok := c.Peek("k")
		return ok && v == 3
	}, time.Second, 5*time.Millisecond)
}

func TestCellInvalidate(t *testing.T) {
	var calls int32
	c := NewCell("test", time.Hour, counterFetch(&calls), WithClock(clockwork.NewFakeClock()))

	_, _ = c.Get(context.Background(), "k")
	c.Invalidate("k")
	_, _, ok := c.Peek("k")
	assert.False(t, ok)

	v, _ := c.Get(context.Background(), "k")
	assert.Equal(t, 2, v)
}

func TestCellMaxEntries(t *testing.T) {
	var calls int32
	c := NewCell("test", time.Hour, counterFetch(&calls), WithClock(clockwork.NewFakeClock()), WithMaxEntries(2))

	for _, k := range []string{"a", "b", "c"} {
		_, err := c.Get(context.Background(), k)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	_, _, ok := c.Peek("a")
	assert.False(t, ok, "least recently used key is evicted")
}
