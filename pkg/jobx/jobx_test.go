package jobx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type results struct {
	mu   sync.Mutex
	seen []string
}

func (r *results) JobFinished(jobType, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, jobType+":"+result)
}

func newTestClient(q Queue, obs Observer) *Client {
	return NewClient(q,
		WithQueues("notify"),
		WithMaxAttempts(2),
		WithRetryBackoff(0),
		WithDequeueTimeout(10*time.Millisecond),
		WithObserver(obs),
	)
}

type greeting struct {
	Name string `json:"name"`
}

func TestProcessSuccess(t *testing.T) {
	q := NewMemoryQueue()
	obs := &results{}
	c := newTestClient(q, obs)
	ctx := context.Background()

	var got greeting
	c.Register("greet", func(_ context.Context, job *JobInfo) error {
		return job.Decode(&got)
	})

	job, err := NewJob("greet", greeting{Name: "ada"})
	require.NoError(t, err)
	id, err := c.Enqueue(ctx, job)
	require.NoError(t, err)

	found, err := c.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ada", got.Name)

	info, err := c.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, info.Status)
	assert.Equal(t, "notify", info.Queue)
	assert.Equal(t, 1, info.Attempts)
	assert.Equal(t, []string{"greet:ok"}, obs.seen)

	found, err = c.ProcessOne(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestProcessRetryThenDead(t *testing.T) {
	q := NewMemoryQueue()
	obs := &results{}
	c := newTestClient(q, obs)
	ctx := context.Background()

	c.Register("flaky", func(context.Context, *JobInfo) error {
		return errors.New("smtp down")
	})
	id, err := c.Enqueue(ctx, Job{Type: "flaky"})
	require.NoError(t, err)

	_, err = c.ProcessOne(ctx)
	require.NoError(t, err)
	info, err := c.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, info.Status)
	assert.Equal(t, "smtp down", info.Error)

	found, err := c.ProcessOne(ctx)
	require.NoError(t, err)
	assert.False(t, found, "retry must wait for promotion")

	require.NoError(t, q.PromoteScheduled(ctx, []string{"notify"}))
	found, err = c.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, found)

	info, err = c.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusDead, info.Status)
	assert.Equal(t, 2, info.Attempts)
	assert.Equal(t, []string{"flaky:retry", "flaky:dead"}, obs.seen)
}

func TestProcessPanicAndMissingHandler(t *testing.T) {
	q := NewMemoryQueue()
	obs := &results{}
	c := NewClient(q, WithMaxAttempts(1), WithDequeueTimeout(10*time.Millisecond), WithObserver(obs))
	ctx := context.Background()

	c.Register("boom", func(context.Context, *JobInfo) error { panic("boom") })
	_, err := c.Enqueue(ctx, Job{Type: "boom"})
	require.NoError(t, err)
	_, err = c.Enqueue(ctx, Job{Type: "unknown"})
	require.NoError(t, err)

	for range 2 {
		found, err := c.ProcessOne(ctx)
		require.NoError(t, err)
		require.True(t, found)
	}
	assert.Equal(t, []string{"boom:dead", "unknown:dead"}, obs.seen)
}

func TestEnqueueRequiresType(t *testing.T) {
	c := NewClient(NewMemoryQueue())
	_, err := c.Enqueue(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestStartProcessesUntilCancelled(t *testing.T) {
	q := NewMemoryQueue()
	c := NewClient(q,
		WithConcurrency(2),
		WithPollInterval(10*time.Millisecond),
		WithDequeueTimeout(10*time.Millisecond),
		WithShutdownTimeout(time.Second),
	)

	done := make(chan string, 3)
	c.Register("echo", func(_ context.Context, job *JobInfo) error {
		done <- job.ID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- c.Start(ctx) }()

	for range 3 {
		_, err := c.Enqueue(context.Background(), Job{Type: "echo"})
		require.NoError(t, err)
	}
	for range 3 {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job was not processed")
		}
	}

	require.Eventually(t, func() bool {
		err := c.Start(ctx)
		return errors.Is(err, ErrAlreadyRunning)
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
}
