// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZSC714725/vpaas/internal/job"
)

type local struct {
	dir string
}

// NewLocal stores uploads as files in dir. Locations are absolute paths,
// so server and worker must share the directory.
func NewLocal(dir string) (Storage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &local{dir: abs}, nil
}

func (l *local) Save(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	path := filepath.Join(l.dir, filepath.Base(name))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// Stage is a no-op, the locations already are local files.
func (l *local) Stage(ctx context.Context, j *job.Job) (*Staged, error) {
	return &Staged{Job: j}, nil
}

func (l *local) Remove(ctx context.Context, location string) error {
	rel, err := filepath.Rel(l.dir, location)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrLocation, location)
	}
	if err := os.Remove(location); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", location, err)
	}
	return nil
}

func (l *local) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	now := time.Now()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
