// Package jobx runs background jobs from a queue with retries.
package jobx

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mojzu/mz/pkg/asyncx"
	"github.com/mojzu/mz/pkg/logx"
)

// HandlerFunc processes a job. A returned error schedules a retry until the
// job runs out of attempts.
type HandlerFunc func(ctx context.Context, job *JobInfo) error

// Queue is a job backend.
type Queue interface {
	// Enqueue stores info and makes it ready.
	Enqueue(ctx context.Context, info *JobInfo) error
	// Dequeue blocks up to timeout for a ready job, marks it active and
	// counts the attempt. It returns (nil, nil) on timeout.
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*JobInfo, error)
	Complete(ctx context.Context, jobID string) error
	// Fail records errMsg. A job with attempts left is scheduled again after
	// retryDelay and Fail returns true; otherwise it is marked dead.
	Fail(ctx context.Context, jobID, errMsg string, retryDelay time.Duration) (bool, error)
	// PromoteScheduled makes scheduled jobs whose time has come ready.
	PromoteScheduled(ctx context.Context, queues []string) error
	GetJob(ctx context.Context, jobID string) (*JobInfo, error)
}

// Observer is told how each processed job ended: "ok", "retry" or "dead".
type Observer interface {
	JobFinished(jobType, result string)
}

// Client enqueues jobs and runs the registered handlers.
type Client struct {
	queue    Queue
	opts     WorkerOptions
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	running  bool
	now      func() time.Time
}

func NewClient(queue Queue, options ...WorkerOption) *Client {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
		now:      time.Now,
	}
}

// Register sets the handler for jobType.
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
}

// Enqueue hands job to the queue and returns its id. A job without a queue
// goes to the first configured queue.
func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.Type == "" {
		return "", jobxErrors.New(ErrInvalidJob).WithDetail("reason", "type is required")
	}
	if job.Queue == "" {
		job.Queue = c.opts.Queues[0]
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = c.opts.MaxAttempts
	}

	info := NewJobInfo(uuid.NewString(), job, c.now().UTC())
	if err := c.queue.Enqueue(ctx, info); err != nil {
		return "", jobxErrors.NewWithCause(ErrEnqueueFailed, err).
			WithDetail("type", job.Type).
			WithDetail("queue", job.Queue)
	}
	return info.ID, nil
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*JobInfo, error) {
	return c.queue.GetJob(ctx, jobID)
}

// Start runs the workers until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return jobxErrors.New(ErrAlreadyRunning)
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logx.WithFields(logx.Fields{
		"concurrency": c.opts.Concurrency,
		"queues":      c.opts.Queues,
	}).Info("jobx: starting workers")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.schedulerLoop(ctx)
	}()
	for i := range c.opts.Concurrency {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.workerLoop(ctx, id)
		}(i)
	}

	<-ctx.Done()
	logx.Info("jobx: shutting down workers")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logx.Info("jobx: all workers stopped")
	case <-time.After(c.opts.ShutdownTimeout):
		logx.Warn("jobx: shutdown timed out, some jobs may not have completed")
	}
	return nil
}

func (c *Client) schedulerLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.queue.PromoteScheduled(ctx, c.opts.Queues); err != nil && ctx.Err() == nil {
				logx.WithError(err).Warn("jobx: failed to promote scheduled jobs")
			}
		}
	}
}

func (c *Client) workerLoop(ctx context.Context, id int) {
	for ctx.Err() == nil {
		if _, err := c.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithError(err).WithField("worker", id).Warn("jobx: dequeue error")
			select {
			case <-ctx.Done():
			case <-time.After(c.opts.PollInterval):
			}
		}
	}
}

// ProcessOne dequeues and handles at most one job. It reports whether a job
// was found.
func (c *Client) ProcessOne(ctx context.Context) (bool, error) {
	job, err := c.queue.Dequeue(ctx, c.opts.Queues, c.opts.DequeueTimeout)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	c.process(ctx, job)
	return true, nil
}

func (c *Client) process(ctx context.Context, job *JobInfo) {
	log := logx.WithFields(logx.Fields{
		"job_id":   job.ID,
		"job_type": job.Type,
		"attempt":  job.Attempts,
	})

	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()

	var err error
	if !ok {
		err = jobxErrors.New(ErrNoHandler).WithDetail("type", job.Type)
	} else {
		_, err = asyncx.Run(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, handler(ctx, job)
		}).Await(ctx)
	}

	if err == nil {
		if cerr := c.queue.Complete(ctx, job.ID); cerr != nil {
			log.WithError(cerr).Error("jobx: failed to complete job")
		}
		c.observe(job.Type, "ok")
		return
	}

	log.WithError(err).Warn("jobx: job failed")
	retrying, ferr := c.queue.Fail(ctx, job.ID, err.Error(), c.backoff(job.Attempts))
	if ferr != nil {
		log.WithError(ferr).Error("jobx: failed to record job failure")
		return
	}
	if retrying {
		c.observe(job.Type, "retry")
		return
	}
	log.Error("jobx: job is dead after its final attempt")
	c.observe(job.Type, "dead")
}

func (c *Client) backoff(attempts int) time.Duration {
	d := c.opts.RetryBackoff
	for i := 1; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	return d
}

func (c *Client) observe(jobType, result string) {
	if c.opts.Observer != nil {
		c.opts.Observer.JobFinished(jobType, result)
	}
}
