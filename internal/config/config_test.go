// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Queue != "vpaas:queue" {
		t.Fatalf("expected default queue name, got %q", cfg.Redis.Queue)
	}
	if cfg.Worker.Concurrency != 1 {
		t.Fatalf("expected one worker by default, got %d", cfg.Worker.Concurrency)
	}
}

func TestLoadOverridesAndFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpaas.yaml")
	data := []byte(`
server:
  bind: ":9100"
ffmpeg:
  path: /usr/local/bin/ffmpeg
  fraction: reciprocal
  stale_timeout: 30s
redis:
  addr: redis:6379
  queue: ""
retry:
  max_attempts: 3
  initial_delay: 1s
  max_delay: 100ms
worker:
  concurrency: 4
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Bind != ":9100" {
		t.Fatalf("bind = %q", cfg.Server.Bind)
	}
	if cfg.FFmpeg.Fraction != "reciprocal" || cfg.FFmpeg.StaleTimeout != 30*time.Second {
		t.Fatalf("ffmpeg section not applied: %+v", cfg.FFmpeg)
	}
	if cfg.Redis.Queue != "vpaas:queue" {
		t.Fatalf("empty queue should be refilled, got %q", cfg.Redis.Queue)
	}
	if cfg.Retry.MaxDelay != time.Second {
		t.Fatalf("max delay should be raised to initial delay, got %v", cfg.Retry.MaxDelay)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Fatalf("concurrency = %d", cfg.Worker.Concurrency)
	}
	if cfg.FFmpeg.KillTimeout != 5*time.Second {
		t.Fatalf("kill timeout should default, got %v", cfg.FFmpeg.KillTimeout)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestFillRetryAndWorkerDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpaas.yaml")
	data := []byte(`
retry:
  jitter: 1.5
worker:
  consumer: encoder-1
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.Jitter != 0.2 || cfg.Retry.Cooldown != 30*time.Second {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if cfg.Worker.Consumer != "encoder-1" || cfg.Worker.RetryDelay != 5*time.Second {
		t.Fatalf("worker = %+v", cfg.Worker)
	}
}
