// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package progress

import "fmt"

// Sink receives the updates of one job, in order, never concurrently.
type Sink interface {
	Report(u Update)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(u Update)

func (f SinkFunc) Report(u Update) { f(u) }

// Logger is the subset of logger.Logger a LogSink needs
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type logSink struct {
	logger Logger
	jobID  string
}

// NewLogSink writes every update to the log.
func NewLogSink(logger Logger, jobID string) Sink {
	return &logSink{logger: logger, jobID: jobID}
}

func (s *logSink) Report(u Update) {
	pct := "n/a"
	if u.Known() {
		pct = fmt.Sprintf("%.2f %%", u.Percentage*100)
	}
	switch u.State {
	case Failed:
		s.logger.Error("job %s failed at %s", s.jobID, pct)
	case Finished:
		s.logger.Info("job %s finished", s.jobID)
	default:
		s.logger.Info("job %s current progress: %s", s.jobID, pct)
	}
}

type multi []Sink

// Multi fans an update out to every sink in order.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Report(u Update) {
	for _, s := range m {
		s.Report(u)
	}
}

type monotonic struct {
	sink  Sink
	state State
	done  bool
}

// Monotonic drops updates that would move the state backwards or that
// arrive after a terminal update.
func Monotonic(sink Sink) Sink {
	return &monotonic{sink: sink}
}

func (m *monotonic) Report(u Update) {
	if m.done || u.State < m.state {
		return
	}
	m.state = u.State
	m.done = u.State.Terminal()
	m.sink.Report(u)
}
