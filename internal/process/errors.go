// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package process

import (
	"errors"
	"fmt"
)

var (
	ErrStart   = errors.New("process could not be started")
	ErrExit    = errors.New("process exited abnormally")
	ErrStale   = errors.New("process stalled")
	ErrRunOnce = errors.New("process already ran")
)

// ExitError reports a non-zero or signalled exit.
type ExitError struct {
	Code  int
	State string
}

func (e *ExitError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("%s: %s", ErrExit, e.State)
	}
	return fmt.Sprintf("%s: %s with status %d", ErrExit, e.State, e.Code)
}

func (e *ExitError) Unwrap() error {
	return ErrExit
}
