// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

// Package progress is the normalized view of a running job.
package progress

import (
	"encoding/json"
	"fmt"
	"math"
)

// State of a job execution
type State int

const (
	Pending State = iota
	InProgress
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no update may follow s.
func (s State) Terminal() bool {
	return s == Finished || s == Failed
}

// Update is one observation of a running job. Percentage is in [0,1] or
// NaN when the job is alive but its position is unknown.
type Update struct {
	Percentage float64
	State      State
}

// Known reports whether the percentage carries a position.
func (u Update) Known() bool {
	return !math.IsNaN(u.Percentage)
}

func (u Update) String() string {
	if !u.Known() {
		return fmt.Sprintf("%s n/a", u.State)
	}
	return fmt.Sprintf("%s %.2f %%", u.State, u.Percentage*100)
}

type wireUpdate struct {
	JobID      string   `json:"job_id,omitempty"`
	Percentage *float64 `json:"percentage"`
	State      string   `json:"state"`
}

// MarshalJSON writes NaN as null.
func (u Update) MarshalJSON() ([]byte, error) {
	return marshal("", u)
}

func marshal(jobID string, u Update) ([]byte, error) {
	w := wireUpdate{JobID: jobID, State: u.State.String()}
	if u.Known() {
		pct := u.Percentage
		w.Percentage = &pct
	}
	return json.Marshal(w)
}

// Fraction computes elapsed/total clamped to [0,1].
func Fraction(elapsed, total float64) float64 {
	if total <= 0 || math.IsNaN(elapsed) || math.IsNaN(total) {
		return math.NaN()
	}
	return math.Max(0, math.Min(1, elapsed/total))
}
