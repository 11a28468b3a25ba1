// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Backoff bounds the retries around one queue operation
type Backoff struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	// Jitter randomizes each delay by up to this fraction.
	Jitter float64
}

// DefaultBackoff matches the config defaults
var DefaultBackoff = Backoff{MaxAttempts: 8, Initial: 250 * time.Millisecond, Max: 10 * time.Second, Jitter: 0.2}

// policy builds the retry schedule for one operation: delays double from
// Initial up to Max, and at most MaxAttempts calls are made.
func (b Backoff) policy(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Initial
	eb.MaxInterval = b.Max
	eb.Multiplier = 2
	eb.RandomizationFactor = b.Jitter
	eb.MaxElapsedTime = 0
	eb.Reset()

	retries := 0
	if b.MaxAttempts > 1 {
		retries = b.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// newBreaker opens after a full retry budget of consecutive connection
// failures and lets a single call through once cooldown passed.
func (q *redisQueue) newBreaker(cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        q.name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= q.backoff.MaxAttempts
		},
		IsSuccessful: func(err error) bool {
			return !isConnectionError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			q.logger.Warn("queue %s circuit %s -> %s", name, from, to)
		},
	})
}

// isConnectionError reports whether err is worth retrying. Replies from
// the server such as WRONGTYPE are not.
func isConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.ErrClosed) {
		return false
	}
	var rerr redis.Error
	return !errors.As(err, &rerr)
}

// retry runs fn through the breaker until it succeeds, fails with an
// error that is not a connection error, or the backoff is spent. Every
// fn passed here must be safe to repeat after a lost reply.
func (q *redisQueue) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := 0
	operation := func() error {
		attempts++
		_, err := q.breaker.Execute(func() (interface{}, error) {
			return nil, fn(ctx)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(fmt.Errorf("%w: %w", ErrConnection, ErrCircuitOpen))
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case !isConnectionError(err):
			return backoff.Permanent(fmt.Errorf("%s: %w", op, err))
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		q.logger.Warn("queue %s %s failed (attempt %d/%d), retrying in %s: %v", q.name, op, attempts, q.backoff.MaxAttempts, delay, err)
	}

	err := backoff.RetryNotify(operation, q.backoff.policy(ctx), notify)
	if err == nil || errors.Is(err, ErrConnection) || ctx.Err() != nil || !isConnectionError(err) {
		return err
	}
	return fmt.Errorf("%w: %s failed %d times: %w", ErrConnection, op, attempts, err)
}
