// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package job

import "errors"

var (
	ErrInvalidJob = errors.New("invalid job")
	ErrDecode     = errors.New("undecodable job payload")
)
