// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package process

import "time"

// Parser consumes the diagnostic output (stderr) of a process
type Parser interface {
	Parse(line string)
	Log() []Line
}

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time
	Data      string
}

type nullParser struct{}

func (p *nullParser) Parse(line string) {}
func (p *nullParser) Log() []Line       { return nil }
