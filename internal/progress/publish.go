// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package progress

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// Publisher pushes updates to redis subscribers on "<prefix>:<job id>".
type Publisher struct {
	client redis.UniversalClient
	prefix string
	logger Logger
}

// NewPublisher creates a Publisher. Publish errors are logged and never
// affect the job.
func NewPublisher(client redis.UniversalClient, prefix string, logger Logger) *Publisher {
	return &Publisher{client: client, prefix: prefix, logger: logger}
}

// Channel returns the pub/sub channel for a job.
func (p *Publisher) Channel(jobID string) string {
	return p.prefix + ":" + jobID
}

// Sink returns a Sink bound to one job.
func (p *Publisher) Sink(ctx context.Context, jobID string) Sink {
	return SinkFunc(func(u Update) {
		payload, err := marshal(jobID, u)
		if err != nil {
			p.logger.Error("encode progress for job %s: %v", jobID, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := p.client.Publish(ctx, p.Channel(jobID), payload).Err(); err != nil {
			p.logger.Error("publish progress for job %s: %v", jobID, err)
		}
	})
}
