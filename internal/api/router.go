// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package api

import (
	"time"

	"github.com/ZSC714725/vpaas/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the routes. Any origin may upload.
func NewRouter(h *Handler, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/", h.Root)
	r.POST("/videos", h.NewVideoJob)
	r.GET("/queue", h.QueueStatus)
	r.GET("/skills", h.Skills)
	r.POST("/skills/reload", h.ReloadSkills)

	return r
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
