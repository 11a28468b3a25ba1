// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

// Package storage keeps uploaded media and makes it reachable for the
// transcoder on the worker.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ZSC714725/vpaas/internal/config"
	"github.com/ZSC714725/vpaas/internal/job"
)

// Storage holds uploads and transcoder outputs
type Storage interface {
	// Save stores an upload under name and returns its location.
	Save(ctx context.Context, name string, r io.Reader, size int64) (string, error)
	// Stage rewrites a job so the transcoder can read its input and write
	// its output on the local filesystem.
	Stage(ctx context.Context, j *job.Job) (*Staged, error)
	// Remove deletes a stored upload. A missing object is not an error.
	Remove(ctx context.Context, location string) error
	// Cleanup removes stored objects older than maxAge.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}

// Staged is a job prepared for local execution. Commit publishes the
// output after a successful run; Release always removes what staging
// created.
type Staged struct {
	Job     *job.Job
	commit  func(ctx context.Context) error
	release func()
}

// NewStaged wraps a job prepared by a backend. Either func may be nil.
func NewStaged(j *job.Job, commit func(ctx context.Context) error, release func()) *Staged {
	return &Staged{Job: j, commit: commit, release: release}
}

// Commit publishes the transcoder output to its final location.
func (s *Staged) Commit(ctx context.Context) error {
	if s.commit == nil {
		return nil
	}
	return s.commit(ctx)
}

// Release removes temporary files.
func (s *Staged) Release() {
	if s.release != nil {
		s.release()
	}
}

// Logger is the subset of logger.Logger storage needs
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// New builds the backend selected in the configuration.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.Storage.Backend {
	case "", "local":
		return NewLocal(cfg.Server.UploadDir)
	case "minio":
		return NewMinio(ctx, MinioConfig{
			Endpoint:  cfg.Storage.Minio.Endpoint,
			AccessKey: cfg.Storage.Minio.AccessKey,
			SecretKey: cfg.Storage.Minio.SecretKey,
			UseSSL:    cfg.Storage.Minio.UseSSL,
			Region:    cfg.Storage.Minio.Region,
			Bucket:    cfg.Storage.Minio.Bucket,
			TempDir:   cfg.Storage.TempDir,
		})
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Storage.Backend)
}
