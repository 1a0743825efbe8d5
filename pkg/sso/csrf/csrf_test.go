package csrf

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/csrf/csrfinfra"
	"github.com/mojzu/mz/pkg/sso/ssoinfra"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu          sync.Mutex
	found, miss int
}

func (o *countingObserver) CsrfConsumed(found bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if found {
		o.found++
	} else {
		o.miss++
	}
}

func stores(t *testing.T) map[string]sso.CsrfStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return map[string]sso.CsrfStore{
		"memory": ssoinfra.NewMemoryDriver(),
		"redis":  csrfinfra.NewRedisStore(rdb),
	}
}

func TestConsumeOnce(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			obs := &countingObserver{}
			r := NewRegister(store, WithObserver(obs))
			ctx := context.Background()

			entry, err := r.Create(ctx, "s1", time.Hour)
			require.NoError(t, err)
			assert.Len(t, entry.Key, 32)
			assert.NotEqual(t, entry.Key, entry.Value)

			got, err := r.Consume(ctx, "s1", entry.Key)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, entry.ServiceID, got.ServiceID)

			got, err = r.Consume(ctx, "s1", entry.Key)
			require.NoError(t, err)
			assert.Nil(t, got)

			assert.Equal(t, 1, obs.found)
			assert.Equal(t, 1, obs.miss)
		})
	}
}

func TestConcurrentConsumeHasOneWinner(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := NewRegister(store)
			ctx := context.Background()
			entry, err := r.Create(ctx, "s1", time.Hour)
			require.NoError(t, err)

			const callers = 16
			results := make(chan *sso.Csrf, callers)
			var wg sync.WaitGroup
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					got, err := r.Consume(ctx, "s1", entry.Key)
					assert.NoError(t, err)
					results <- got
				}()
			}
			wg.Wait()
			close(results)

			wins := 0
			for got := range results {
				if got != nil {
					wins++
				}
			}
			assert.Equal(t, 1, wins)
		})
	}
}

func TestConsumeTreatsExpiredAsAbsent(t *testing.T) {
	store := ssoinfra.NewMemoryDriver()
	now := time.Now()
	r := NewRegister(store, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	entry, err := r.Create(ctx, "s1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	got, err := r.Consume(ctx, "s1", entry.Key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTakeIsScopedToService(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			obs := &countingObserver{}
			r := NewRegister(store, WithObserver(obs))
			ctx := context.Background()

			entry, err := r.Create(ctx, "s1", time.Hour)
			require.NoError(t, err)

			_, err = r.Take(ctx, "s2", entry.Key)
			assert.True(t, sso.IsCode(err, sso.CodeCsrfNotFoundOrUsed))

			// The owner can still use the entry after a foreign attempt.
			got, err := r.Take(ctx, "s1", entry.Key)
			require.NoError(t, err)
			assert.Equal(t, entry.Value, got.Value)

			_, err = r.Take(ctx, "s1", entry.Key)
			assert.True(t, sso.IsCode(err, sso.CodeCsrfNotFoundOrUsed))

			_, err = r.Take(ctx, "s1", "")
			assert.True(t, sso.IsCode(err, sso.CodeCsrfNotFoundOrUsed))

			assert.Equal(t, 1, obs.found)
			assert.Equal(t, 3, obs.miss)
		})
	}
}

func TestSweep(t *testing.T) {
	store := ssoinfra.NewMemoryDriver()
	now := time.Now()
	r := NewRegister(store, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := r.Create(ctx, "s1", time.Minute)
	require.NoError(t, err)
	keep, err := r.Create(ctx, "s1", time.Hour)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := r.Consume(ctx, "s1", keep.Key)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRedisStoreExpiresWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := NewRegister(csrfinfra.NewRedisStore(rdb))
	ctx := context.Background()
	entry, err := r.Create(ctx, "s1", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	got, err := r.Consume(ctx, "s1", entry.Key)
	require.NoError(t, err)
	assert.Nil(t, got)
}
