// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

// Package worker pulls jobs from the queue and runs them one after the
// other on each of its loops.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ZSC714725/vpaas/internal/ffmpeg"
	"github.com/ZSC714725/vpaas/internal/job"
	"github.com/ZSC714725/vpaas/internal/logger"
	"github.com/ZSC714725/vpaas/internal/progress"
	"github.com/ZSC714725/vpaas/internal/queue"
	"github.com/ZSC714725/vpaas/internal/storage"

	"github.com/dustin/go-humanize"
	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"
)

const (
	failureLogLines   = 10
	defaultRetryDelay = 5 * time.Second
	ackTimeout        = 10 * time.Second
)

// Executor runs a single job
type Executor interface {
	Execute(ctx context.Context, j *job.Job, sink progress.Sink) (ffmpeg.Report, error)
}

// Config for a Worker
type Config struct {
	Queue       queue.Queue
	Executor    Executor
	Storage     storage.Storage
	Publisher   *progress.Publisher
	Concurrency int
	// RetryDelay is the pause before dequeueing again while the queue
	// backend is unreachable.
	RetryDelay time.Duration
	Logger     logger.Logger
}

// Stats counts handled jobs
type Stats struct {
	Processed uint64
	Succeeded uint64
	Failed    uint64
}

// Worker consumes the queue
type Worker struct {
	queue       queue.Queue
	executor    Executor
	storage     storage.Storage
	publisher   *progress.Publisher
	concurrency int
	retryDelay  time.Duration
	logger      logger.Logger

	processed atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
}

// New creates a Worker
func New(config Config) *Worker {
	w := &Worker{
		queue:       config.Queue,
		executor:    config.Executor,
		storage:     config.Storage,
		publisher:   config.Publisher,
		concurrency: config.Concurrency,
		retryDelay:  config.RetryDelay,
		logger:      config.Logger,
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.retryDelay <= 0 {
		w.retryDelay = defaultRetryDelay
	}
	if w.logger == nil {
		w.logger = logger.Nop()
	}
	return w
}

// Run blocks until ctx is cancelled or the queue fails for a reason
// other than connectivity. A failed job never stops the worker, and an
// unreachable queue is retried. Cancellation returns nil.
func (w *Worker) Run(ctx context.Context) error {
	if n, err := w.queue.Recover(ctx); err != nil {
		w.logger.Warn("recover unfinished jobs: %v", err)
	} else if n > 0 {
		w.logger.Info("requeued %d unfinished jobs from a previous run", n)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error { return w.loop(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, queue.ErrConnection) {
				w.logger.Error("dequeue: %v", err)
				return err
			}
			w.logger.Warn("dequeue: %v, retrying in %s", err, w.retryDelay)
			if err := sleep(ctx, w.retryDelay); err != nil {
				return err
			}
			continue
		}

		w.handle(ctx, d.Job)

		w.ack(ctx, d)
	}
}

// ack outlives a shutdown so a job that already ran is not handed out
// again after a restart.
func (w *Worker) ack(ctx context.Context, d *queue.Delivery) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := w.queue.Ack(ctx, d); err != nil {
		w.logger.Error("job %s: ack: %v", d.Job.ID, err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stats returns the counters so far
func (w *Worker) Stats() Stats {
	return Stats{
		Processed: w.processed.Load(),
		Succeeded: w.succeeded.Load(),
		Failed:    w.failed.Load(),
	}
}

func (w *Worker) handle(ctx context.Context, j *job.Job) {
	w.processed.Add(1)
	if j.ID == "" {
		j.ID = shortuuid.New()
	}

	sink := &observed{sink: w.sink(ctx, j.ID)}

	w.logger.Info("job %s: %s -> %s at %s", j.ID, j.InputLocation, j.OutputLocation, j.Dimensions)

	if err := w.run(ctx, j, sink); err != nil {
		w.failed.Add(1)
		if !sink.seen {
			sink.Report(progress.Update{Percentage: math.NaN(), State: progress.Failed})
		}
		w.logger.Error("job %s failed: %v", j.ID, err)
		return
	}
	w.succeeded.Add(1)
}

func (w *Worker) run(ctx context.Context, j *job.Job, sink progress.Sink) error {
	staged := &storage.Staged{Job: j}
	if w.storage != nil {
		s, err := w.storage.Stage(ctx, j)
		if err != nil {
			return fmt.Errorf("stage: %w", err)
		}
		staged = s
	}
	defer staged.Release()

	gate := &held{sink: sink, last: math.NaN()}
	report, err := w.executor.Execute(ctx, staged.Job, gate)
	w.report(j.ID, report, err)
	if err != nil {
		return err
	}

	if err := staged.Commit(ctx); err != nil {
		sink.Report(progress.Update{Percentage: gate.last, State: progress.Failed})
		return fmt.Errorf("commit: %w", err)
	}
	if gate.finished != nil {
		sink.Report(*gate.finished)
	}
	return nil
}

func (w *Worker) report(id string, r ffmpeg.Report, err error) {
	if r.Pid == 0 {
		return
	}
	w.logger.Info("job %s: pid %d ran %s, exit %d, peak cpu %.1f%%, peak memory %s",
		id, r.Pid, r.Runtime.Round(time.Millisecond), r.ExitCode, r.CPU, humanize.IBytes(r.Memory))

	if err == nil || len(r.Log) == 0 {
		return
	}
	lines := r.Log
	if len(lines) > failureLogLines {
		lines = lines[len(lines)-failureLogLines:]
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Data
	}
	w.logger.Error("job %s: last transcoder output:\n%s", id, strings.Join(out, "\n"))
}

func (w *Worker) sink(ctx context.Context, id string) progress.Sink {
	sinks := []progress.Sink{progress.NewLogSink(w.logger, id)}
	if w.publisher != nil {
		sinks = append(sinks, w.publisher.Sink(ctx, id))
	}
	return progress.Multi(sinks...)
}

// observed remembers whether any update went through.
type observed struct {
	sink progress.Sink
	seen bool
}

func (o *observed) Report(u progress.Update) {
	o.seen = true
	o.sink.Report(u)
}

// held forwards updates but keeps Finished back until the output was
// committed.
type held struct {
	sink     progress.Sink
	last     float64
	finished *progress.Update
}

func (h *held) Report(u progress.Update) {
	if u.State == progress.Finished {
		h.finished = &u
		return
	}
	if u.Known() {
		h.last = u.Percentage
	}
	h.sink.Report(u)
}
