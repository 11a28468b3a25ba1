// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ZSC714725/vpaas/internal/ffmpeg/skills"
	"github.com/ZSC714725/vpaas/internal/job"
	"github.com/ZSC714725/vpaas/internal/logger"
	"github.com/ZSC714725/vpaas/internal/queue"
	"github.com/ZSC714725/vpaas/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/lithammer/shortuuid/v4"
)

const uploadExt = ".mov"

// Prober reports what the local transcoder supports
type Prober interface {
	Skills() skills.Skills
	ReloadSkills() error
}

// Config holds handler dependencies. Prober is optional.
type Config struct {
	Queue     queue.Queue
	QueueName string
	Storage   storage.Storage
	Prober    Prober
	MaxBytes  int64
	Logger    logger.Logger
}

// Handler holds dependencies
type Handler struct {
	queue     queue.Queue
	queueName string
	storage   storage.Storage
	prober    Prober
	maxBytes  int64
	logger    logger.Logger
}

// NewHandler creates API handler
func NewHandler(config Config) *Handler {
	h := &Handler{
		queue:     config.Queue,
		queueName: config.QueueName,
		storage:   config.Storage,
		prober:    config.Prober,
		maxBytes:  config.MaxBytes,
		logger:    config.Logger,
	}
	if h.maxBytes <= 0 {
		h.maxBytes = 1024 * 100_000
	}
	if h.logger == nil {
		h.logger = logger.Nop()
	}
	return h
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// Root GET /
func (h *Handler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Hello, World!")
}

// NewVideoJob POST /videos
//
// Multipart fields: file (the media), new_dimension (JSON
// {"width":..,"height":..}) and optionally audio_codec.
func (h *Handler) NewVideoJob(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	reader, err := c.Request.MultipartReader()
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid multipart body", err.Error())
		return
	}

	var (
		id         = shortuuid.New()
		input      string
		dimensions *job.Dimensions
		audioCodec *string
		queued     bool
	)

	// Uploads of rejected requests are not kept.
	defer func() {
		if input == "" || queued {
			return
		}
		if err := h.storage.Remove(context.WithoutCancel(c.Request.Context()), input); err != nil {
			h.logger.Error("discard upload %s: %v", input, err)
		}
	}()

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.readError(c, err)
			return
		}

		switch part.FormName() {
		case "file":
			if input != "" {
				part.Close()
				errResp(c, http.StatusBadRequest, "duplicate file", "")
				return
			}
			input, err = h.storage.Save(c.Request.Context(), id+uploadExt, part, -1)
			part.Close()
			if err != nil {
				h.readError(c, err)
				return
			}
		case "new_dimension":
			data, err := io.ReadAll(io.LimitReader(part, 4096))
			part.Close()
			if err != nil {
				h.readError(c, err)
				return
			}
			var req DimensionsRequest
			if err := binding.JSON.BindBody(data, &req); err != nil {
				errResp(c, http.StatusBadRequest, "Invalid dimensions", err.Error())
				return
			}
			dimensions = &job.Dimensions{Width: req.Width, Height: req.Height}
		case "audio_codec":
			data, err := io.ReadAll(io.LimitReader(part, 256))
			part.Close()
			if err != nil {
				h.readError(c, err)
				return
			}
			if codec := strings.TrimSpace(string(data)); codec != "" {
				audioCodec = &codec
			}
		default:
			part.Close()
			errResp(c, http.StatusBadRequest, "unknown field given in multipart", part.FormName())
			return
		}
	}

	if input == "" {
		errResp(c, http.StatusBadRequest, "missing filename", "")
		return
	}
	if dimensions == nil {
		errResp(c, http.StatusBadRequest, "missing new dimensions", "")
		return
	}
	if audioCodec != nil && h.prober != nil && !h.prober.Skills().HasEncoder(*audioCodec) {
		errResp(c, http.StatusBadRequest, "Unsupported audio codec", *audioCodec)
		return
	}

	j, err := job.New(id, input, job.OutputFor(input), *dimensions, audioCodec)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid job", err.Error())
		return
	}

	outstanding, err := h.queue.Enqueue(c.Request.Context(), j)
	if err != nil {
		h.logger.Error("enqueue job %s: %v", id, err)
		errResp(c, http.StatusServiceUnavailable, "Queue unavailable", err.Error())
		return
	}
	queued = true
	h.logger.Info("Enqueued new job %s. Outstanding job count: %d", id, outstanding)

	c.JSON(http.StatusCreated, JobCreated{
		ID:              id,
		Input:           j.InputLocation,
		Output:          j.OutputLocation,
		OutstandingJobs: outstanding,
	})
}

func (h *Handler) readError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		errResp(c, http.StatusRequestEntityTooLarge, "Upload too large", err.Error())
		return
	}
	h.logger.Error("read upload: %v", err)
	errResp(c, http.StatusBadRequest, "Invalid upload", err.Error())
}

// QueueStatus GET /queue
func (h *Handler) QueueStatus(c *gin.Context) {
	n, err := h.queue.Len(c.Request.Context())
	if err != nil {
		errResp(c, http.StatusServiceUnavailable, "Queue unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, QueueStatus{Name: h.queueName, OutstandingJobs: n})
}

// Skills GET /skills
func (h *Handler) Skills(c *gin.Context) {
	if h.prober == nil {
		errResp(c, http.StatusServiceUnavailable, "Transcoder not available", "")
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.prober.Skills()))
}

// ReloadSkills POST /skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if h.prober == nil {
		errResp(c, http.StatusServiceUnavailable, "Transcoder not available", "")
		return
	}
	if err := h.prober.ReloadSkills(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.prober.Skills()))
}
