// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

// Package job defines the unit of work handed from ingestion to the workers.
package job

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Dimensions is the target frame size
type Dimensions struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Valid reports whether both sides are positive.
func (d Dimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// Job is a self-describing transcoding request. A worker needs nothing
// besides the Job to execute it.
type Job struct {
	ID             string     `json:"id,omitempty"`
	InputLocation  string     `json:"input_uri"`
	OutputLocation string     `json:"output_uri"`
	Dimensions     Dimensions `json:"new_dimensions"`
	AudioCodec     *string    `json:"audio_codec"`
}

// New validates the fields and returns a Job.
func New(id, input, output string, dimensions Dimensions, audioCodec *string) (*Job, error) {
	j := &Job{
		ID:             id,
		InputLocation:  input,
		OutputLocation: output,
		Dimensions:     dimensions,
		AudioCodec:     audioCodec,
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// Validate checks the structural invariants of a Job.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.InputLocation) == "" {
		return fmt.Errorf("%w: empty input location", ErrInvalidJob)
	}
	if strings.TrimSpace(j.OutputLocation) == "" {
		return fmt.Errorf("%w: empty output location", ErrInvalidJob)
	}
	if !j.Dimensions.Valid() {
		return fmt.Errorf("%w: dimensions %s", ErrInvalidJob, j.Dimensions)
	}
	if j.AudioCodec != nil && strings.TrimSpace(*j.AudioCodec) == "" {
		return fmt.Errorf("%w: empty audio codec", ErrInvalidJob)
	}
	return nil
}

// Codec returns the audio codec override, or "" for the transcoder default.
func (j *Job) Codec() string {
	if j.AudioCodec == nil {
		return ""
	}
	return *j.AudioCodec
}

// Equal compares two jobs field by field.
func (j *Job) Equal(o *Job) bool {
	if j == nil || o == nil {
		return j == o
	}
	if j.ID != o.ID || j.InputLocation != o.InputLocation || j.OutputLocation != o.OutputLocation || j.Dimensions != o.Dimensions {
		return false
	}
	if (j.AudioCodec == nil) != (o.AudioCodec == nil) {
		return false
	}
	return j.AudioCodec == nil || *j.AudioCodec == *o.AudioCodec
}

// Marshal serializes the job into its queue payload.
func Marshal(j *Job) (string, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("failed to serialize job: %w", err)
	}
	return string(data), nil
}

// Unmarshal decodes a queue payload and validates the result.
func Unmarshal(payload string) (*Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(payload), &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// OutputFor derives the conventional output location for an upload.
func OutputFor(input string) string {
	return input + ".mp4"
}
