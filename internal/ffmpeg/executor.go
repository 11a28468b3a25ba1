// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ZSC714725/vpaas/internal/ffmpeg/parse"
	"github.com/ZSC714725/vpaas/internal/job"
	"github.com/ZSC714725/vpaas/internal/process"
	"github.com/ZSC714725/vpaas/internal/progress"
)

// Report summarizes one execution
type Report struct {
	Pid      int
	ExitCode int
	Runtime  time.Duration
	Duration time.Duration // announced media duration, 0 if never seen
	Stats    parse.Stats   // last complete progress block
	CPU      float64       // peak CPU percent
	Memory   uint64        // peak RSS in bytes
	Log      []process.Line
}

func (f *ffmpeg) Execute(ctx context.Context, j *job.Job, sink progress.Sink) (Report, error) {
	if err := f.Check(j); err != nil {
		return Report{}, err
	}
	if sink == nil {
		sink = progress.SinkFunc(func(progress.Update) {})
	}
	sink = progress.Monotonic(sink)

	log := f.logger.Named(j.ID)
	parser := parse.New(parse.Config{LogLines: f.logLines, Fraction: f.fraction})
	t := &tracker{
		block:    parse.NewBlock(),
		duration: parser,
		fraction: f.fraction,
		sink:     sink,
		last:     math.NaN(),
	}

	proc, err := process.New(process.Config{
		Binary:       f.binary,
		Args:         Args(j),
		Env:          f.env,
		StaleTimeout: f.staleTimeout,
		KillTimeout:  f.killTimeout,
		Parser:       parser,
		Sampler:      process.NewSysSampler(f.sampleInterval),
		Logger:       log,
		OnStart: func(pid int) {
			log.Debug("transcoder started with pid %d", pid)
		},
		OnStateChange: func(from, to string) {
			log.Debug("transcoder %s -> %s", from, to)
		},
	})
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", process.ErrStart, err)
	}

	start := time.Now()
	runErr := proc.Run(ctx, t.line)

	st := proc.Status()
	report := Report{
		Pid:      st.Pid,
		ExitCode: st.ExitCode,
		Runtime:  time.Since(start),
		Stats:    t.stats,
		CPU:      st.CPU.Peak,
		Memory:   st.Memory.Peak,
		Log:      proc.Log(),
	}
	report.Duration, _ = parser.Duration()

	if runErr != nil {
		if !errors.Is(runErr, process.ErrStart) {
			sink.Report(progress.Update{Percentage: t.last, State: progress.Failed})
		}
		return report, runErr
	}

	sink.Report(progress.Update{Percentage: 1, State: progress.Finished})
	return report, nil
}

// tracker turns progress blocks from stdout into updates, using the
// duration the stderr parser found so far.
type tracker struct {
	block    *parse.Block
	duration interface{ Duration() (time.Duration, bool) }
	fraction parse.FractionMode
	sink     progress.Sink
	last     float64
	stats    parse.Stats
}

func (t *tracker) line(line string) error {
	end, err := t.block.Add(line)
	if err != nil {
		return err
	}
	if !end {
		return nil
	}
	defer t.block.Reset()

	t.stats = t.block.Stats()

	elapsed, err := t.block.Elapsed(t.fraction)
	if err != nil {
		// ffmpeg reports N/A or negative times before the first frame
		return nil
	}

	pct := math.NaN()
	if total, ok := t.duration.Duration(); ok {
		pct = progress.Fraction(elapsed.Seconds(), total.Seconds())
	}
	if !math.IsNaN(pct) {
		t.last = pct
	}
	t.sink.Report(progress.Update{Percentage: pct, State: progress.InProgress})
	return nil
}
