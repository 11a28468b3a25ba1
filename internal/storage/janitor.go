// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically removes old uploads and outputs.
type Janitor struct {
	storage Storage
	maxAge  time.Duration
	logger  Logger
	cron    *cron.Cron
}

// NewJanitor schedules Cleanup. The schedule is a standard five field
// cron spec or a descriptor such as "@every 10m".
func NewJanitor(s Storage, schedule string, maxAge time.Duration, logger Logger) (*Janitor, error) {
	j := &Janitor{
		storage: s,
		maxAge:  maxAge,
		logger:  logger,
		cron:    cron.New(),
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running cleanup.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce removes everything older than the configured age.
func (j *Janitor) RunOnce(ctx context.Context) int {
	n, err := j.storage.Cleanup(ctx, j.maxAge)
	if err != nil {
		j.logger.Error("cleanup after %d removals: %v", n, err)
		return n
	}
	if n > 0 {
		j.logger.Info("cleanup removed %d files older than %s", n, j.maxAge)
	}
	return n
}
