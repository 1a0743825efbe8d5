package jobx

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for tests and single-process
// development. Jobs are lost on restart.
type MemoryQueue struct {
	mu        sync.Mutex
	jobs      map[string]*JobInfo
	ready     map[string][]string
	scheduled map[string]time.Time
	signal    chan struct{}
	now       func() time.Time
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		jobs:      make(map[string]*JobInfo),
		ready:     make(map[string][]string),
		scheduled: make(map[string]time.Time),
		signal:    make(chan struct{}, 1),
		now:       time.Now,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, info *JobInfo) error {
	q.mu.Lock()
	cp := *info
	q.jobs[info.ID] = &cp
	q.ready[info.Queue] = append(q.ready[info.Queue], info.ID)
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *MemoryQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*JobInfo, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if job := q.pop(queues); job != nil {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-deadline.C:
			return nil, nil
		case <-q.signal:
		}
	}
}

func (q *MemoryQueue) pop(queues []string) *JobInfo {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, name := range queues {
		ids := q.ready[name]
		if len(ids) == 0 {
			continue
		}
		id := ids[0]
		q.ready[name] = ids[1:]
		job, ok := q.jobs[id]
		if !ok {
			continue
		}
		job.Status = JobStatusActive
		job.Attempts++
		job.UpdatedAt = q.now().UTC()
		cp := *job
		return &cp
	}
	return nil
}

func (q *MemoryQueue) Complete(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return jobxErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
	}
	job.Status = JobStatusCompleted
	job.Error = ""
	job.UpdatedAt = q.now().UTC()
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, jobID, errMsg string, retryDelay time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return false, jobxErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
	}
	now := q.now().UTC()
	job.Error = errMsg
	job.UpdatedAt = now
	if job.Exhausted() {
		job.Status = JobStatusDead
		return false, nil
	}
	job.Status = JobStatusRetrying
	q.scheduled[jobID] = now.Add(retryDelay)
	return true, nil
}

func (q *MemoryQueue) PromoteScheduled(_ context.Context, queues []string) error {
	q.mu.Lock()
	now := q.now()
	promoted := 0
	for id, at := range q.scheduled {
		job, ok := q.jobs[id]
		if !ok || at.After(now) || !slices.Contains(queues, job.Queue) {
			continue
		}
		delete(q.scheduled, id)
		job.Status = JobStatusPending
		q.ready[job.Queue] = append(q.ready[job.Queue], id)
		promoted++
	}
	q.mu.Unlock()
	if promoted > 0 {
		q.wake()
	}
	return nil
}

func (q *MemoryQueue) GetJob(_ context.Context, jobID string) (*JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, jobxErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
	}
	cp := *job
	return &cp, nil
}
