// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZSC714725/vpaas/internal/config"
	"github.com/ZSC714725/vpaas/internal/ffmpeg"
	"github.com/ZSC714725/vpaas/internal/ffmpeg/parse"
	"github.com/ZSC714725/vpaas/internal/logger"
	"github.com/ZSC714725/vpaas/internal/progress"
	"github.com/ZSC714725/vpaas/internal/queue"
	"github.com/ZSC714725/vpaas/internal/storage"
	"github.com/ZSC714725/vpaas/internal/worker"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	redisAddr := flag.String("redis", "", "Redis address (overrides config)")
	concurrency := flag.Int("concurrency", 0, "Parallel jobs (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}
	if *concurrency > 0 {
		cfg.Worker.Concurrency = *concurrency
	}

	logger, err := logger.New("vpaas-worker", logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		log.Fatalf("Logger: %v", err)
	}
	defer logger.Sync()

	fraction, err := parse.ParseFractionMode(cfg.FFmpeg.Fraction)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	validator, err := ffmpeg.NewValidator(cfg.FFmpeg.Allow, cfg.FFmpeg.Block)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		Fraction:        fraction,
		StaleTimeout:    cfg.FFmpeg.StaleTimeout,
		KillTimeout:     cfg.FFmpeg.KillTimeout,
		MaxLogLines:     cfg.FFmpeg.LogLines,
		ValidatorInput:  validator,
		ValidatorOutput: validator,
		Logger:          logger.Named("ffmpeg"),
	})
	if err != nil {
		logger.Error("FFmpeg init: %v", err)
		os.Exit(1)
	}
	logger.Info("using ffmpeg %s, duration fractions as %s", ff.Skills().FFmpeg.Version, fraction)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	q := queue.NewRedis(client, queue.Config{
		Name:        cfg.Redis.Queue,
		PollTimeout: cfg.Redis.PollTimeout,
		Backoff: queue.Backoff{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Initial:     cfg.Retry.InitialDelay,
			Max:         cfg.Retry.MaxDelay,
			Jitter:      cfg.Retry.Jitter,
		},
		Cooldown: cfg.Retry.Cooldown,
		Consumer: cfg.Worker.Consumer,
		Logger:   logger.Named("queue"),
	})

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Error("storage: %v", err)
		os.Exit(1)
	}

	var publisher *progress.Publisher
	if cfg.Redis.ProgressChannel != "" {
		publisher = progress.NewPublisher(client, cfg.Redis.ProgressChannel, logger.Named("progress"))
	}

	w := worker.New(worker.Config{
		Queue:       q,
		Executor:    ff,
		Storage:     store,
		Publisher:   publisher,
		Concurrency: cfg.Worker.Concurrency,
		RetryDelay:  cfg.Worker.RetryDelay,
		Logger:      logger.Named("worker"),
	})

	logger.Info("worker waiting on %s with %d loop(s)", cfg.Redis.Queue, cfg.Worker.Concurrency)
	err = w.Run(ctx)

	st := w.Stats()
	logger.Info("worker stopped: %d jobs, %d succeeded, %d failed", st.Processed, st.Succeeded, st.Failed)
	if err != nil {
		logger.Error("worker: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}
