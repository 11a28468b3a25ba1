// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package process

import (
	"context"
	"sync"
	"time"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Sampler observes CPU and memory of a running process. NullSampler does nothing.
type Sampler interface {
	Start(pid int) error
	Stop()
	Current() (cpu float64, memory uint64)
	Peak() (cpu float64, memory uint64)
}

type nullSampler struct{}

// NewNullSampler returns a no-op sampler
func NewNullSampler() Sampler {
	return &nullSampler{}
}

func (s *nullSampler) Start(pid int) error        { return nil }
func (s *nullSampler) Stop()                      {}
func (s *nullSampler) Current() (float64, uint64) { return 0, 0 }
func (s *nullSampler) Peak() (float64, uint64)    { return 0, 0 }

// sysSampler 使用 gopsutil 周期采集进程 CPU 和内存，并记录峰值
type sysSampler struct {
	interval time.Duration

	mu      sync.RWMutex
	proc    *gopsutilprocess.Process
	cpu     float64
	memory  uint64
	peakCPU float64
	peakMem uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSysSampler 创建基于系统调用的采样器
func NewSysSampler(interval time.Duration) Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &sysSampler{interval: interval}
}

func (s *sysSampler) Start(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.proc = proc
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

func (s *sysSampler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *sysSampler) sample() {
	s.mu.RLock()
	proc := s.proc
	s.mu.RUnlock()
	if proc == nil {
		return
	}

	var cpu float64
	var memory uint64
	if pct, err := proc.CPUPercent(); err == nil {
		cpu = pct
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		memory = info.RSS
	}

	s.mu.Lock()
	s.cpu, s.memory = cpu, memory
	if cpu > s.peakCPU {
		s.peakCPU = cpu
	}
	if memory > s.peakMem {
		s.peakMem = memory
	}
	s.mu.Unlock()
}

func (s *sysSampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	s.proc = nil
	s.mu.Unlock()
}

func (s *sysSampler) Current() (float64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cpu, s.memory
}

func (s *sysSampler) Peak() (float64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakCPU, s.peakMem
}
