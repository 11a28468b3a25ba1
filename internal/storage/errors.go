// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package storage

import "errors"

var (
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrLocation       = errors.New("location not served by this storage")
)
