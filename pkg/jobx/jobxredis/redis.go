// Package jobxredis is a Redis backed jobx.Queue.
package jobxredis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/mojzu/mz/pkg/jobx"
	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long finished jobs stay readable.
const DefaultRetention = 24 * time.Hour

// RedisQueue keeps job records as JSON strings, ready ids in a list per
// queue, delayed ids in a sorted set per queue and dead ids in a list per
// queue.
type RedisQueue struct {
	rdb       redis.Cmdable
	prefix    string
	retention time.Duration
	now       func() time.Time
}

var _ jobx.Queue = (*RedisQueue)(nil)

type Option func(*RedisQueue)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(q *RedisQueue) { q.prefix = prefix }
}

func WithRetention(d time.Duration) Option {
	return func(q *RedisQueue) { q.retention = d }
}

func NewRedisQueue(rdb redis.Cmdable, opts ...Option) *RedisQueue {
	q := &RedisQueue{rdb: rdb, prefix: "jobx", retention: DefaultRetention, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) queueKey(name string) string     { return q.prefix + ":queue:" + name }
func (q *RedisQueue) scheduledKey(name string) string { return q.prefix + ":scheduled:" + name }
func (q *RedisQueue) deadKey(name string) string      { return q.prefix + ":dead:" + name }
func (q *RedisQueue) jobKey(id string) string         { return q.prefix + ":job:" + id }

func (q *RedisQueue) Enqueue(ctx context.Context, info *jobx.JobInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return redisErrors.NewWithCause(ErrMarshal, err)
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(info.ID), data, 0)
		pipe.LPush(ctx, q.queueKey(info.Queue), info.ID)
		return nil
	})
	if err != nil {
		return redisErrors.NewWithCause(ErrEnqueue, err).WithDetail("queue", info.Queue)
	}
	return nil
}

// Dequeue pops with BRPOP so each id is handed to exactly one worker.
func (q *RedisQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*jobx.JobInfo, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = q.queueKey(name)
	}

	result, err := q.rdb.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, redisErrors.NewWithCause(ErrDequeue, err)
	}

	info, err := q.GetJob(ctx, result[1])
	if err != nil {
		return nil, err
	}
	info.Status = jobx.JobStatusActive
	info.Attempts++
	info.UpdatedAt = q.now().UTC()
	if err := q.save(ctx, info, 0); err != nil {
		return nil, err
	}
	return info, nil
}

func (q *RedisQueue) Complete(ctx context.Context, jobID string) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	info.Status = jobx.JobStatusCompleted
	info.Error = ""
	info.UpdatedAt = q.now().UTC()
	return q.save(ctx, info, q.retention)
}

func (q *RedisQueue) Fail(ctx context.Context, jobID, errMsg string, retryDelay time.Duration) (bool, error) {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	now := q.now().UTC()
	info.Error = errMsg
	info.UpdatedAt = now

	if info.Exhausted() {
		info.Status = jobx.JobStatusDead
		data, err := json.Marshal(info)
		if err != nil {
			return false, redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", jobID)
		}
		_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, q.jobKey(jobID), data, q.retention)
			pipe.LPush(ctx, q.deadKey(info.Queue), jobID)
			return nil
		})
		if err != nil {
			return false, redisErrors.NewWithCause(ErrUpdate, err).WithDetail("job_id", jobID)
		}
		return false, nil
	}

	info.Status = jobx.JobStatusRetrying
	data, err := json.Marshal(info)
	if err != nil {
		return false, redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", jobID)
	}
	score := float64(now.Add(retryDelay).Unix())
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(jobID), data, 0)
		pipe.ZAdd(ctx, q.scheduledKey(info.Queue), redis.Z{Score: score, Member: jobID})
		return nil
	})
	if err != nil {
		return false, redisErrors.NewWithCause(ErrUpdate, err).WithDetail("job_id", jobID)
	}
	return true, nil
}

// promoteScript moves due ids from the scheduled set to the ready list in
// one step so two schedulers never promote the same id twice.
var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
    redis.call('LPUSH', KEYS[2], id)
end
return #ids
`)

func (q *RedisQueue) PromoteScheduled(ctx context.Context, queues []string) error {
	now := strconv.FormatInt(q.now().UTC().Unix(), 10)
	for _, name := range queues {
		err := promoteScript.Run(ctx, q.rdb, []string{q.scheduledKey(name), q.queueKey(name)}, now).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return redisErrors.NewWithCause(ErrPromote, err).WithDetail("queue", name)
		}
	}
	return nil
}

func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	data, err := q.rdb.Get(ctx, q.jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redisErrors.New(ErrNotFound).WithDetail("job_id", jobID)
		}
		return nil, redisErrors.NewWithCause(ErrGetJob, err).WithDetail("job_id", jobID)
	}
	var info jobx.JobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, redisErrors.NewWithCause(ErrUnmarshal, err).WithDetail("job_id", jobID)
	}
	return &info, nil
}

// DeadJobs lists the ids of dead jobs in queue, newest first.
func (q *RedisQueue) DeadJobs(ctx context.Context, queue string) ([]string, error) {
	ids, err := q.rdb.LRange(ctx, q.deadKey(queue), 0, -1).Result()
	if err != nil {
		return nil, redisErrors.NewWithCause(ErrGetJob, err).WithDetail("queue", queue)
	}
	return ids, nil
}

func (q *RedisQueue) save(ctx context.Context, info *jobx.JobInfo, ttl time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", info.ID)
	}
	if err := q.rdb.Set(ctx, q.jobKey(info.ID), data, ttl).Err(); err != nil {
		return redisErrors.NewWithCause(ErrUpdate, err).WithDetail("job_id", info.ID)
	}
	return nil
}
