// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator decides whether a location may be handed to the transcoder
type Validator interface {
	IsValid(location string) bool
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator creates a new Validator. Blocked locations are never
// valid; with an allow list, only matching locations are. Empty
// expressions are ignored.
func NewValidator(allow, block []string) (Validator, error) {
	v := &validator{}
	var err error

	if v.allow, err = compile("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compile("block", block); err != nil {
		return nil, err
	}
	return v, nil
}

func compile(kind string, expressions []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, exp := range expressions {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (v *validator) IsValid(location string) bool {
	for _, e := range v.block {
		if e.MatchString(location) {
			return false
		}
	}
	if len(v.allow) == 0 {
		return true
	}
	for _, e := range v.allow {
		if e.MatchString(location) {
			return true
		}
	}
	return false
}
