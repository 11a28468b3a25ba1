// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package parse

import (
	"container/ring"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZSC714725/vpaas/internal/process"
)

// Parser implements process.Parser for the diagnostic channel (stderr).
// It keeps the last lines for failure reports and records the total
// media duration the first time ffmpeg announces it.
type Parser interface {
	process.Parser
	// Duration returns the announced total duration, if seen yet.
	Duration() (time.Duration, bool)
}

// Config for the parser
type Config struct {
	LogLines int
	Fraction FractionMode
}

type parser struct {
	fraction FractionMode
	duration atomic.Pointer[time.Duration]

	log      *ring.Ring
	logLines int
	lock     sync.RWMutex
}

// New creates a Parser
func New(config Config) Parser {
	p := &parser{
		fraction: config.Fraction,
		logLines: config.LogLines,
	}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	p.log = ring.New(p.logLines)
	return p
}

func (p *parser) Parse(line string) {
	p.lock.Lock()
	p.log.Value = process.Line{Timestamp: time.Now(), Data: line}
	p.log = p.log.Next()
	p.lock.Unlock()

	// Only the first announcement counts; later inputs or outputs print
	// their own Duration lines.
	if p.duration.Load() != nil {
		return
	}
	ts, ok := DurationLine(line)
	if !ok {
		return
	}
	d, err := ParseDuration(ts, p.fraction)
	if err != nil {
		return
	}
	p.duration.CompareAndSwap(nil, &d)
}

func (p *parser) Duration() (time.Duration, bool) {
	d := p.duration.Load()
	if d == nil {
		return 0, false
	}
	return *d, true
}

func (p *parser) Log() []process.Line {
	var out []process.Line
	p.lock.RLock()
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(process.Line))
		}
	})
	p.lock.RUnlock()
	return out
}
