package jobx

import "time"

// WorkerOptions configures the client.
type WorkerOptions struct {
	Queues          []string
	Concurrency     int
	MaxAttempts     int
	PollInterval    time.Duration
	DequeueTimeout  time.Duration
	ShutdownTimeout time.Duration
	// RetryBackoff is the delay before the first retry. It doubles on every
	// further attempt.
	RetryBackoff time.Duration
	Observer     Observer
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Queues:          []string{"default"},
		Concurrency:     2,
		MaxAttempts:     3,
		PollInterval:    time.Second,
		DequeueTimeout:  5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		RetryBackoff:    10 * time.Second,
	}
}

type WorkerOption func(*WorkerOptions)

func WithQueues(queues ...string) WorkerOption {
	return func(o *WorkerOptions) {
		if len(queues) > 0 {
			o.Queues = queues
		}
	}
}

func WithConcurrency(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithMaxAttempts sets the attempt limit for jobs enqueued without one.
func WithMaxAttempts(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

func WithDequeueTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.DequeueTimeout = d
		}
	}
}

func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d >= 0 {
			o.RetryBackoff = d
		}
	}
}

func WithObserver(obs Observer) WorkerOption {
	return func(o *WorkerOptions) {
		o.Observer = obs
	}
}
