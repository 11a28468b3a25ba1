// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

// Package queue hands serialized jobs from producers to workers through a
// redis list. Producers push to the tail; a worker moves the head into its
// own processing list and removes it from there once the job is done, so
// every item reaches exactly one worker and survives a worker crash.
package queue

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ZSC714725/vpaas/internal/job"

	"github.com/lithammer/shortuuid/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// DefaultName is the list shared by producers and consumers
const DefaultName = "vpaas:queue"

const defaultDedupTTL = 24 * time.Hour

// Queue is a durable FIFO of jobs
type Queue interface {
	// Enqueue appends the job and returns the resulting queue length.
	// Enqueueing the same job ID twice adds it once.
	Enqueue(ctx context.Context, j *job.Job) (int64, error)
	// Dequeue blocks until a job is available and hands it to this
	// consumer. The job stays owned by the consumer until Ack.
	Dequeue(ctx context.Context) (*Delivery, error)
	// Ack releases a delivered job for good.
	Ack(ctx context.Context, d *Delivery) error
	// Recover puts jobs a previous run of this consumer never
	// acknowledged back at the head of the queue.
	Recover(ctx context.Context) (int, error)
	// Len returns the number of waiting jobs.
	Len(ctx context.Context) (int64, error)
}

// Delivery is a dequeued job together with its queue payload
type Delivery struct {
	Job     *job.Job
	payload string
}

// NewDelivery wraps a job that did not come from redis.
func NewDelivery(j *job.Job) *Delivery {
	return &Delivery{Job: j}
}

// Logger interface
type Logger interface {
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Config for a redis backed queue
type Config struct {
	Name        string
	PollTimeout time.Duration
	Backoff     Backoff
	// Cooldown keeps the circuit open after the backoff was exhausted.
	Cooldown time.Duration
	// Consumer names the processing list of this worker process. It must
	// be stable across restarts and unique among running workers.
	Consumer string
	// DedupTTL is how long an enqueued job ID is remembered.
	DedupTTL time.Duration
	Logger   Logger
}

type redisQueue struct {
	client     redis.UniversalClient
	name       string
	processing string
	poll       time.Duration
	dedupTTL   time.Duration
	backoff    Backoff
	breaker    *gobreaker.CircuitBreaker
	logger     Logger
}

// RPUSH guarded by a marker on the job ID, so a push repeated after a
// lost reply does not add the job a second time.
var enqueueScript = redis.NewScript(`
if redis.call('SET', KEYS[2], '1', 'NX', 'PX', ARGV[2]) then
	redis.call('RPUSH', KEYS[1], ARGV[1])
end
return redis.call('LLEN', KEYS[1])
`)

// NewRedis creates a Queue on top of a redis client. Each process owns its
// client; concurrent Dequeue calls use separate pool connections.
func NewRedis(client redis.UniversalClient, config Config) Queue {
	q := &redisQueue{
		client:   client,
		name:     config.Name,
		poll:     config.PollTimeout,
		dedupTTL: config.DedupTTL,
		backoff:  config.Backoff,
		logger:   config.Logger,
	}
	if q.name == "" {
		q.name = DefaultName
	}
	consumer := config.Consumer
	if consumer == "" {
		consumer, _ = os.Hostname()
	}
	if consumer == "" {
		consumer = "default"
	}
	q.processing = q.name + ":processing:" + consumer
	if q.poll < time.Second {
		q.poll = 5 * time.Second
	}
	if q.dedupTTL <= 0 {
		q.dedupTTL = defaultDedupTTL
	}
	if q.backoff.MaxAttempts <= 0 {
		q.backoff = DefaultBackoff
	}
	if q.logger == nil {
		q.logger = &nopLogger{}
	}
	cooldown := config.Cooldown
	if cooldown <= 0 {
		cooldown = q.backoff.Max
	}
	q.breaker = q.newBreaker(cooldown)
	return q
}

func (q *redisQueue) Enqueue(ctx context.Context, j *job.Job) (int64, error) {
	if j.ID == "" {
		c := *j
		c.ID = shortuuid.New()
		j = &c
	}
	payload, err := job.Marshal(j)
	if err != nil {
		return 0, err
	}

	var n int64
	err = q.retry(ctx, "enqueue", func(ctx context.Context) error {
		var err error
		n, err = enqueueScript.Run(ctx, q.client,
			[]string{q.name, q.name + ":enqueued:" + j.ID},
			payload, q.dedupTTL.Milliseconds(),
		).Int64()
		return err
	})
	return n, err
}

func (q *redisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// A move whose reply is lost leaves the item in the processing
		// list, where Recover finds it.
		var payload string
		err := q.retry(ctx, "dequeue", func(ctx context.Context) error {
			var err error
			payload, err = q.client.BLMove(ctx, q.name, q.processing, "LEFT", "RIGHT", q.poll).Result()
			if errors.Is(err, redis.Nil) {
				payload = ""
				return nil
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		if payload == "" {
			continue
		}

		j, err := job.Unmarshal(payload)
		if err != nil {
			q.logger.Error("dropping payload from %s: %v", q.name, err)
			q.ack(ctx, payload)
			continue
		}
		return &Delivery{Job: j, payload: payload}, nil
	}
}

func (q *redisQueue) Ack(ctx context.Context, d *Delivery) error {
	if d.payload == "" {
		return nil
	}
	return q.ack(ctx, d.payload)
}

func (q *redisQueue) ack(ctx context.Context, payload string) error {
	return q.retry(ctx, "ack", func(ctx context.Context) error {
		return q.client.LRem(ctx, q.processing, 1, payload).Err()
	})
}

func (q *redisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		var done bool
		err := q.retry(ctx, "recover", func(ctx context.Context) error {
			err := q.client.LMove(ctx, q.processing, q.name, "RIGHT", "LEFT").Err()
			if errors.Is(err, redis.Nil) {
				done = true
				return nil
			}
			return err
		})
		if err != nil {
			return moved, err
		}
		if done {
			return moved, nil
		}
		moved++
	}
}

func (q *redisQueue) Len(ctx context.Context) (int64, error) {
	var n int64
	err := q.retry(ctx, "len", func(ctx context.Context) error {
		var err error
		n, err = q.client.LLen(ctx, q.name).Result()
		return err
	})
	return n, err
}

type nopLogger struct{}

func (l *nopLogger) Warn(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
