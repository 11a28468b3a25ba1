// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package api

// ErrorResponse for API
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// DimensionsRequest is the new_dimension part of an upload
type DimensionsRequest struct {
	Width  uint32 `json:"width" binding:"required,gt=0"`
	Height uint32 `json:"height" binding:"required,gt=0"`
}

// JobCreated is returned by POST /videos
type JobCreated struct {
	ID              string `json:"id"`
	Input           string `json:"input"`
	Output          string `json:"output"`
	OutstandingJobs int64  `json:"outstanding_jobs"`
}

// QueueStatus is returned by GET /queue
type QueueStatus struct {
	Name            string `json:"name"`
	OutstandingJobs int64  `json:"outstanding_jobs"`
}
