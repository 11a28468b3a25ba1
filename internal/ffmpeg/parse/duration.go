// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FractionMode selects how the digits after the seconds mark are read.
type FractionMode int

const (
	// FractionDecimal reads ".5" and ".500000" as half a second.
	FractionDecimal FractionMode = iota
	// FractionReciprocal adds 1/n seconds where n is the fraction read as
	// an integer, so ".500000" adds 2µs. Kept for workers that must agree
	// with older deployments. A zero fraction adds nothing.
	FractionReciprocal
)

func (m FractionMode) String() string {
	if m == FractionReciprocal {
		return "reciprocal"
	}
	return "decimal"
}

// ParseFractionMode maps a config value to a mode.
func ParseFractionMode(s string) (FractionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "decimal":
		return FractionDecimal, nil
	case "reciprocal":
		return FractionReciprocal, nil
	}
	return FractionDecimal, fmt.Errorf("unknown fraction mode %q", s)
}

var (
	timestampRE = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`^([0-9]+):([0-9]{2}):([0-9]{2})\.([0-9]{2,6})$`)
	})
	durationLineRE = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`^\s*Duration:\s+([0-9]+:[0-9]{2}:[0-9]{2}\.[0-9]{2,6})`)
	})
)

// ParseDuration parses H+:MM:SS.fraction with a fraction of 2 to 6 digits.
func ParseDuration(s string, mode FractionMode) (time.Duration, error) {
	m := timestampRE().FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	hours, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || hours > math.MaxInt64/int64(time.Hour) {
		return 0, fmt.Errorf("%w: hours out of range in %q", ErrInvalidDuration, s)
	}
	minutes, _ := strconv.ParseInt(m[2], 10, 64)
	seconds, _ := strconv.ParseInt(m[3], 10, 64)
	fraction, _ := strconv.ParseInt(m[4], 10, 64)

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	if d < 0 {
		return 0, fmt.Errorf("%w: overflow in %q", ErrInvalidDuration, s)
	}

	switch mode {
	case FractionReciprocal:
		if fraction > 0 {
			d += time.Duration(float64(time.Second) / float64(fraction))
		}
	default:
		scale := int64(1)
		for i := len(m[4]); i < 9; i++ {
			scale *= 10
		}
		d += time.Duration(fraction * scale)
	}

	return d, nil
}

// DurationLine extracts the timestamp from a "Duration: ..." announcement
// on the diagnostic channel.
func DurationLine(line string) (string, bool) {
	m := durationLineRE().FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}
