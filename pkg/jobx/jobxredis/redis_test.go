package jobxredis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mojzu/mz/pkg/errx"
	"github.com/mojzu/mz/pkg/jobx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisQueue(rdb, WithPrefix("test"), WithRetention(time.Hour)), mr
}

func TestRedisQueueLifecycle(t *testing.T) {
	q, mr := newQueue(t)
	ctx := context.Background()
	c := jobx.NewClient(q, jobx.WithQueues("notify"), jobx.WithDequeueTimeout(50*time.Millisecond))

	var handled int
	c.Register("send", func(context.Context, *jobx.JobInfo) error {
		handled++
		return nil
	})

	id, err := c.Enqueue(ctx, jobx.Job{Type: "send", Payload: []byte(`{"to":"a@example.com"}`)})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:job:"+id))

	found, err := c.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, handled)

	info, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobx.JobStatusCompleted, info.Status)
	assert.Equal(t, 1, info.Attempts)
	assert.JSONEq(t, `{"to":"a@example.com"}`, string(info.Payload))

	mr.FastForward(2 * time.Hour)
	_, err = q.GetJob(ctx, id)
	assert.True(t, errx.IsCode(err, ErrNotFound))
}

func TestRedisQueueRetryAndDead(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()
	c := jobx.NewClient(q,
		jobx.WithQueues("notify"),
		jobx.WithMaxAttempts(2),
		jobx.WithRetryBackoff(0),
		jobx.WithDequeueTimeout(50*time.Millisecond),
	)
	c.Register("send", func(context.Context, *jobx.JobInfo) error {
		return errors.New("provider rejected message")
	})

	id, err := c.Enqueue(ctx, jobx.Job{Type: "send", Payload: []byte(`{}`)})
	require.NoError(t, err)

	_, err = c.ProcessOne(ctx)
	require.NoError(t, err)
	info, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobx.JobStatusRetrying, info.Status)

	require.NoError(t, q.PromoteScheduled(ctx, []string{"notify"}))
	found, err := c.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, found)

	info, err = q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobx.JobStatusDead, info.Status)
	assert.Equal(t, "provider rejected message", info.Error)

	dead, err := q.DeadJobs(ctx, "notify")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, dead)
}

func TestRedisQueueDequeueTimeout(t *testing.T) {
	q, _ := newQueue(t)

	info, err := q.Dequeue(context.Background(), []string{"empty"}, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, info)
}
