// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置，server 与 worker 共用
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Redis   RedisConfig   `yaml:"redis"`
	Retry   RetryConfig   `yaml:"retry"`
	Storage StorageConfig `yaml:"storage"`
	Worker  WorkerConfig  `yaml:"worker"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig 上传服务配置
type ServerConfig struct {
	Bind            string        `yaml:"bind"`
	UploadDir       string        `yaml:"upload_dir"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
	CleanupAfter    time.Duration `yaml:"cleanup_after"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path         string        `yaml:"path"`
	Fraction     string        `yaml:"fraction"`
	StaleTimeout time.Duration `yaml:"stale_timeout"`
	KillTimeout  time.Duration `yaml:"kill_timeout"`
	LogLines     int           `yaml:"log_lines"`
	Allow        []string      `yaml:"allow"`
	Block        []string      `yaml:"block"`
}

// RedisConfig 队列后端配置
type RedisConfig struct {
	Addr            string        `yaml:"addr"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	Queue           string        `yaml:"queue"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
	ProgressChannel string        `yaml:"progress_channel"`
}

// RetryConfig 队列连接重试
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Jitter       float64       `yaml:"jitter"`
	Cooldown     time.Duration `yaml:"cooldown"`
}

// StorageConfig 上传文件存储
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	TempDir string      `yaml:"temp_dir"`
	Minio   MinioConfig `yaml:"minio"`
}

// MinioConfig S3 兼容存储
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
}

// WorkerConfig worker 配置
type WorkerConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Consumer    string        `yaml:"consumer"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:            "127.0.0.1:9000",
			UploadDir:       "uploads",
			MaxUploadBytes:  1024 * 100_000,
			CleanupSchedule: "@every 10m",
			CleanupAfter:    24 * time.Hour,
		},
		FFmpeg: FFmpegConfig{
			Path:        "ffmpeg",
			Fraction:    "decimal",
			KillTimeout: 5 * time.Second,
			LogLines:    100,
		},
		Redis: RedisConfig{
			Addr:            "127.0.0.1:6379",
			Queue:           "vpaas:queue",
			PollTimeout:     5 * time.Second,
			ProgressChannel: "vpaas:progress",
		},
		Retry: RetryConfig{
			MaxAttempts:  8,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Jitter:       0.2,
			Cooldown:     30 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "local",
			TempDir: os.TempDir(),
		},
		Worker: WorkerConfig{Concurrency: 1, RetryDelay: 5 * time.Second},
		Log:    LogConfig{Level: "info"},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.fill()

	return cfg, nil
}

// 填充空值
func (c *Config) fill() {
	def := Default()

	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = def.Server.UploadDir
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = def.Server.MaxUploadBytes
	}
	if c.Server.CleanupAfter <= 0 {
		c.Server.CleanupAfter = def.Server.CleanupAfter
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = def.FFmpeg.Path
	}
	if c.FFmpeg.Fraction == "" {
		c.FFmpeg.Fraction = def.FFmpeg.Fraction
	}
	if c.FFmpeg.KillTimeout <= 0 {
		c.FFmpeg.KillTimeout = def.FFmpeg.KillTimeout
	}
	if c.FFmpeg.LogLines <= 0 {
		c.FFmpeg.LogLines = def.FFmpeg.LogLines
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = def.Redis.Addr
	}
	if c.Redis.Queue == "" {
		c.Redis.Queue = def.Redis.Queue
	}
	if c.Redis.PollTimeout <= 0 {
		c.Redis.PollTimeout = def.Redis.PollTimeout
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = def.Retry.InitialDelay
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		c.Retry.MaxDelay = c.Retry.InitialDelay
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		c.Retry.Jitter = def.Retry.Jitter
	}
	if c.Retry.Cooldown <= 0 {
		c.Retry.Cooldown = def.Retry.Cooldown
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = def.Storage.TempDir
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = def.Worker.Concurrency
	}
	if c.Worker.RetryDelay <= 0 {
		c.Worker.RetryDelay = def.Worker.RetryDelay
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
