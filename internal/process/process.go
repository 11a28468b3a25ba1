// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列
//
// Package process wraps exec.Cmd for running one transcoder invocation
// with both output streams captured.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

const maxLineSize = 1024 * 1024

// LineFunc receives one line of the process's standard output. A non-nil
// error aborts the run and kills the process.
type LineFunc func(line string) error

// Process represents a single run of a binary
type Process interface {
	Run(ctx context.Context, stdout LineFunc) error
	Status() Status
	Log() []Line
}

// Config for a process
type Config struct {
	Binary        string
	Args          []string
	Env           []string
	StaleTimeout  time.Duration
	KillTimeout   time.Duration
	Parser        Parser
	Sampler       Sampler
	OnStart       func(pid int)
	OnStateChange func(from, to string)
	Logger        Logger
}

// Status of a process
type Status struct {
	State    string
	Pid      int
	ExitCode int
	Duration time.Duration
	Time     time.Time
	CPU      struct {
		Current float64
		Peak    float64
	}
	Memory struct {
		Current uint64
		Peak    uint64
	}
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateIdle      stateType = "idle"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFinished  stateType = "finished"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

type process struct {
	binary  string
	args    []string
	env     []string
	ran     atomic.Bool
	parser  Parser
	sampler Sampler
	logger  Logger

	state struct {
		state    stateType
		time     time.Time
		pid      int
		exitCode int
		lock     sync.Mutex
	}
	cmd struct {
		cmd       *exec.Cmd
		killTimer *time.Timer
		stopping  bool
		lock      sync.Mutex
	}
	stale struct {
		last    time.Time
		timeout time.Duration
		fired   bool
		lock    sync.Mutex
	}
	killTimeout time.Duration
	callbacks   struct {
		onStart       func(pid int)
		onStateChange func(from, to string)
	}
}

// New creates a new process
func New(config Config) (Process, error) {
	p := &process{
		binary:      config.Binary,
		args:        config.Args,
		env:         config.Env,
		parser:      config.Parser,
		sampler:     config.Sampler,
		logger:      config.Logger,
		killTimeout: config.KillTimeout,
	}

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	if p.env == nil {
		p.env = []string{}
	}

	if p.parser == nil {
		p.parser = &nullParser{}
	}

	if p.sampler == nil {
		p.sampler = NewNullSampler()
	}

	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	if p.killTimeout <= 0 {
		p.killTimeout = 5 * time.Second
	}

	p.state.state = stateIdle
	p.state.time = time.Now()
	p.state.exitCode = -1
	p.stale.timeout = config.StaleTimeout
	p.callbacks.onStart = config.OnStart
	p.callbacks.onStateChange = config.OnStateChange

	return p, nil
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()

	prevState := p.state.state
	failed := false

	switch p.state.state {
	case stateIdle:
		failed = state != stateStarting
	case stateStarting:
		failed = state != stateRunning && state != stateFailed
	case stateRunning:
		switch state {
		case stateFinishing, stateFinished, stateFailed, stateKilled:
		default:
			failed = true
		}
	case stateFinishing:
		switch state {
		case stateFinished, stateFailed, stateKilled:
		default:
			failed = true
		}
	default:
		failed = true
	}

	if failed {
		p.state.lock.Unlock()
		return fmt.Errorf("can't change from %s to %s", prevState, state)
	}

	p.state.state = state
	p.state.time = time.Now()
	p.state.lock.Unlock()

	if p.callbacks.onStateChange != nil {
		p.callbacks.onStateChange(prevState.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) Status() Status {
	p.state.lock.Lock()
	s := Status{
		State:    p.state.state.String(),
		Pid:      p.state.pid,
		ExitCode: p.state.exitCode,
		Duration: time.Since(p.state.time),
		Time:     p.state.time,
	}
	p.state.lock.Unlock()

	s.CPU.Current, s.Memory.Current = p.sampler.Current()
	s.CPU.Peak, s.Memory.Peak = p.sampler.Peak()
	return s
}

func (p *process) Log() []Line {
	return p.parser.Log()
}

// Run starts the binary, feeds stderr to the parser on a separate
// goroutine and stdout to fn on the calling goroutine, then reaps the
// process. Both pipes are closed on every return path.
func (p *process) Run(ctx context.Context, fn LineFunc) error {
	if !p.ran.CompareAndSwap(false, true) {
		return ErrRunOnce
	}

	p.setState(stateStarting)

	cmd := exec.Command(p.binary, p.args...)
	cmd.Env = p.env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.setState(stateFailed)
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		p.setState(stateFailed)
		return fmt.Errorf("%w: %w", ErrStart, err)
	}

	if err := ctx.Err(); err != nil {
		stdout.Close()
		stderr.Close()
		p.setState(stateFailed)
		return fmt.Errorf("%w: %w", ErrStart, err)
	}

	if err := cmd.Start(); err != nil {
		p.setState(stateFailed)
		return fmt.Errorf("%w: %w", ErrStart, err)
	}

	pid := cmd.Process.Pid
	p.cmd.lock.Lock()
	p.cmd.cmd = cmd
	p.cmd.lock.Unlock()

	p.state.lock.Lock()
	p.state.pid = pid
	p.state.lock.Unlock()

	if err := p.sampler.Start(pid); err != nil {
		p.logger.Debug("sampler for pid %d: %v", pid, err)
	}

	p.setState(stateRunning)

	if p.callbacks.onStart != nil {
		p.callbacks.onStart(pid)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.reader(stderr)
	}()

	stopOnCancel := context.AfterFunc(ctx, p.stop)

	staleCtx, cancelStale := context.WithCancel(context.Background())
	if p.stale.timeout > 0 {
		go p.staler(staleCtx)
	}

	scanErr := p.scan(stdout, fn)
	if scanErr != nil {
		p.kill()
	}

	wg.Wait()
	waitErr := cmd.Wait()

	stopOnCancel()
	cancelStale()
	p.sampler.Stop()

	p.cmd.lock.Lock()
	if p.cmd.killTimer != nil {
		p.cmd.killTimer.Stop()
		p.cmd.killTimer = nil
	}
	p.cmd.lock.Unlock()

	exitErr := p.waiter(waitErr)

	p.stale.lock.Lock()
	stale := p.stale.fired
	p.stale.lock.Unlock()

	switch {
	case scanErr != nil:
		return scanErr
	case exitErr == nil:
		return nil
	case stale:
		return fmt.Errorf("%w: no output for %s: %w", ErrStale, p.stale.timeout, exitErr)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ctx.Err(), exitErr)
	}
	return exitErr
}

// waiter maps the result of Wait to the final state.
func (p *process) waiter(err error) error {
	p.cmd.lock.Lock()
	stopping := p.cmd.stopping
	p.cmd.lock.Unlock()

	code := 0
	state := stateFinished

	if err != nil {
		var exiterr *exec.ExitError
		if errors.As(err, &exiterr) {
			code = exiterr.ExitCode()
		} else {
			code = -1
		}
		switch {
		case code < 0 || stopping:
			state = stateKilled
		default:
			state = stateFailed
		}
	}

	p.state.lock.Lock()
	p.state.exitCode = code
	p.state.lock.Unlock()

	p.setState(state)

	if state == stateFinished {
		return nil
	}
	return &ExitError{Code: code, State: state.String()}
}

// stop asks the process to quit and kills it after the kill timeout.
func (p *process) stop() {
	if !p.getState().IsRunning() {
		return
	}

	p.cmd.lock.Lock()
	defer p.cmd.lock.Unlock()

	if p.cmd.cmd == nil || p.cmd.stopping {
		return
	}
	p.cmd.stopping = true

	if p.getState() == stateRunning {
		p.setState(stateFinishing)
	}

	proc := p.cmd.cmd.Process
	if runtime.GOOS == "windows" {
		proc.Kill()
		return
	}
	if err := proc.Signal(os.Interrupt); err != nil {
		proc.Kill()
		return
	}
	p.cmd.killTimer = time.AfterFunc(p.killTimeout, func() {
		proc.Kill()
	})
}

// kill terminates the process immediately.
func (p *process) kill() {
	p.cmd.lock.Lock()
	defer p.cmd.lock.Unlock()

	if p.cmd.cmd == nil {
		return
	}
	p.cmd.stopping = true
	p.cmd.cmd.Process.Kill()
}

func (p *process) staler(ctx context.Context) {
	p.touch()

	interval := p.stale.timeout / 4
	if interval <= 0 {
		interval = p.stale.timeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			p.stale.lock.Lock()
			last := p.stale.last
			timeout := p.stale.timeout
			p.stale.lock.Unlock()

			if t.Sub(last) > timeout {
				p.stale.lock.Lock()
				p.stale.fired = true
				p.stale.lock.Unlock()
				p.logger.Error("no output for %s, stopping pid %d", timeout, p.Status().Pid)
				p.stop()
				return
			}
		}
	}
}

func (p *process) touch() {
	p.stale.lock.Lock()
	p.stale.last = time.Now()
	p.stale.lock.Unlock()
}

func (p *process) scan(r io.Reader, fn LineFunc) error {
	scanner := newScanner(r)
	for scanner.Scan() {
		p.touch()
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdout: %w", err)
	}
	return nil
}

func (p *process) reader(r io.Reader) {
	scanner := newScanner(r)
	for scanner.Scan() {
		p.parser.Parse(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		p.logger.Debug("read stderr: %v", err)
	}
	// Keep draining so the child never blocks on a full pipe.
	io.Copy(io.Discard, r)
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	scanner.Split(scanLine)
	return scanner
}

func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
