// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package ffmpeg

import "errors"

var (
	ErrInvalidInput        = errors.New("input location not allowed")
	ErrInvalidOutput       = errors.New("output location not allowed")
	ErrUnsupportedCodec    = errors.New("audio codec not supported by transcoder")
	ErrUnsupportedProtocol = errors.New("input protocol not supported by transcoder")
)
