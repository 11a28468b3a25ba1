// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package parse

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDuration = errors.New("invalid duration")
	ErrProtocol        = errors.New("malformed progress line")
)

// ProtocolError carries the offending progress line.
type ProtocolError struct {
	Line string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %q", ErrProtocol, e.Line)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}
