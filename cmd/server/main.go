// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZSC714725/vpaas/internal/api"
	"github.com/ZSC714725/vpaas/internal/config"
	"github.com/ZSC714725/vpaas/internal/ffmpeg"
	"github.com/ZSC714725/vpaas/internal/logger"
	"github.com/ZSC714725/vpaas/internal/queue"
	"github.com/ZSC714725/vpaas/internal/storage"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	redisAddr := flag.String("redis", "", "Redis address (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}

	logger, err := logger.New("vpaas-server", logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		log.Fatalf("Logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis at %s not reachable yet: %v", cfg.Redis.Addr, err)
	}

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
		Logger:   logger.Named("queue"),
	})

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Error("storage: %v", err)
		os.Exit(1)
	}

	// 转码器只用于能力查询，缺失时上传仍然可用
	var prober api.Prober
	if ff, err := ffmpeg.New(ffmpeg.Config{Binary: cfg.FFmpeg.Path, Logger: logger.Named("ffmpeg")}); err != nil {
		logger.Warn("skills disabled: %v", err)
	} else {
		prober = ff
	}

	if cfg.Server.CleanupSchedule != "" {
		janitor, err := storage.NewJanitor(store, cfg.Server.CleanupSchedule, cfg.Server.CleanupAfter, logger.Named("janitor"))
		if err != nil {
			logger.Error("janitor: %v", err)
			os.Exit(1)
		}
		janitor.Start()
		defer janitor.Stop()
	}

	handler := api.NewHandler(api.Config{
		Queue:     q,
		QueueName: cfg.Redis.Queue,
		Storage:   store,
		Prober:    prober,
		MaxBytes:  cfg.Server.MaxUploadBytes,
		Logger:    logger.Named("api"),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           api.NewRouter(handler, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("VPaaS listening on %s", cfg.Server.Bind)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server: %v", err)
		os.Exit(1)
	}
}
