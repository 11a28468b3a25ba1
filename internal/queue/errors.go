// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package queue

import "errors"

var (
	ErrConnection  = errors.New("queue backend unreachable")
	ErrCircuitOpen = errors.New("circuit open")
)
