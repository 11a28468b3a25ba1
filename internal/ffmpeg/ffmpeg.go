// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ZSC714725/vpaas/internal/ffmpeg/parse"
	"github.com/ZSC714725/vpaas/internal/ffmpeg/skills"
	"github.com/ZSC714725/vpaas/internal/job"
	"github.com/ZSC714725/vpaas/internal/logger"
	"github.com/ZSC714725/vpaas/internal/progress"
)

// FFmpeg executes jobs with one FFmpeg binary
type FFmpeg interface {
	// Execute runs the job to completion and reports progress to sink.
	Execute(ctx context.Context, j *job.Job, sink progress.Sink) (Report, error)
	// Check rejects a job the binary can not run, before anything starts.
	Check(j *job.Job) error
	Skills() skills.Skills
	ReloadSkills() error
}

// Config for FFmpeg
type Config struct {
	Binary          string
	Env             []string
	Fraction        parse.FractionMode
	StaleTimeout    time.Duration
	KillTimeout     time.Duration
	MaxLogLines     int
	SampleInterval  time.Duration
	ValidatorInput  Validator
	ValidatorOutput Validator
	Logger          logger.Logger
}

type ffmpeg struct {
	binary         string
	env            []string
	fraction       parse.FractionMode
	staleTimeout   time.Duration
	killTimeout    time.Duration
	logLines       int
	sampleInterval time.Duration
	validatorIn    Validator
	validatorOut   Validator
	logger         logger.Logger

	skills     skills.Skills
	skillsLock sync.RWMutex
}

// New resolves the binary and probes its skills
func New(config Config) (FFmpeg, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}
	config.Binary = binary

	s, err := skills.New(binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg: %w", err)
	}

	return newFFmpeg(config, s), nil
}

func newFFmpeg(config Config, s skills.Skills) *ffmpeg {
	f := &ffmpeg{
		binary:         config.Binary,
		env:            config.Env,
		fraction:       config.Fraction,
		staleTimeout:   config.StaleTimeout,
		killTimeout:    config.KillTimeout,
		logLines:       config.MaxLogLines,
		sampleInterval: config.SampleInterval,
		validatorIn:    config.ValidatorInput,
		validatorOut:   config.ValidatorOutput,
		logger:         config.Logger,
		skills:         s,
	}

	if f.logLines <= 0 {
		f.logLines = 100
	}
	if f.sampleInterval <= 0 {
		f.sampleInterval = time.Second
	}
	if f.validatorIn == nil {
		f.validatorIn, _ = NewValidator(nil, nil)
	}
	if f.validatorOut == nil {
		f.validatorOut, _ = NewValidator(nil, nil)
	}
	if f.logger == nil {
		f.logger = logger.Nop()
	}

	return f
}

func (f *ffmpeg) Check(j *job.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	if !f.validatorIn.IsValid(j.InputLocation) {
		return fmt.Errorf("%w: %s", ErrInvalidInput, j.InputLocation)
	}
	if !f.validatorOut.IsValid(j.OutputLocation) {
		return fmt.Errorf("%w: %s", ErrInvalidOutput, j.OutputLocation)
	}

	s := f.Skills()
	if codec := j.Codec(); codec != "" && !s.HasEncoder(codec) {
		return fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
	if !s.SupportsInputProtocol(j.InputLocation) {
		return fmt.Errorf("%w: %s", ErrUnsupportedProtocol, skills.Scheme(j.InputLocation))
	}
	return nil
}

func (f *ffmpeg) Skills() skills.Skills {
	f.skillsLock.RLock()
	defer f.skillsLock.RUnlock()
	return f.skills
}

func (f *ffmpeg) ReloadSkills() error {
	s, err := skills.New(f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = s
	f.skillsLock.Unlock()
	return nil
}
