// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package parse

import (
	"strconv"
	"strings"
	"time"
)

const (
	// DelimiterKey closes one block of -progress output. Its value is
	// "continue" or "end".
	DelimiterKey = "progress"
	// ElapsedKey holds the processed output time.
	ElapsedKey = "out_time"
)

// Stats is the informational part of a progress block
type Stats struct {
	Frame   uint64  `json:"frame"`
	FPS     float64 `json:"fps"`
	Size    uint64  `json:"size_bytes"`
	Bitrate string  `json:"bitrate"`
	Speed   float64 `json:"speed"`
	Drop    uint64  `json:"drop"`
	Dup     uint64  `json:"dup"`
	End     bool    `json:"end"`
}

// Block accumulates the key=value lines of one progress block.
type Block struct {
	values map[string]string
}

// NewBlock returns an empty block
func NewBlock() *Block {
	return &Block{values: make(map[string]string)}
}

// Add consumes one progress-channel line. It reports true when the line
// was the delimiter closing the current block; the block is left intact
// so the caller can evaluate it before Reset.
func (b *Block) Add(line string) (bool, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return false, &ProtocolError{Line: line}
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return false, &ProtocolError{Line: line}
	}
	b.values[key] = value
	return key == DelimiterKey, nil
}

// Get returns the raw value for key.
func (b *Block) Get(key string) (string, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Elapsed parses the block's out_time.
func (b *Block) Elapsed(mode FractionMode) (time.Duration, error) {
	v, ok := b.values[ElapsedKey]
	if !ok {
		return 0, ErrInvalidDuration
	}
	return ParseDuration(v, mode)
}

// Stats extracts the counters ffmpeg reports alongside out_time. Missing
// or "N/A" values stay zero.
func (b *Block) Stats() Stats {
	s := Stats{
		Bitrate: b.values["bitrate"],
		End:     b.values[DelimiterKey] == "end",
	}
	if x, err := strconv.ParseUint(b.values["frame"], 10, 64); err == nil {
		s.Frame = x
	}
	if x, err := strconv.ParseFloat(b.values["fps"], 64); err == nil {
		s.FPS = x
	}
	if x, err := strconv.ParseUint(b.values["total_size"], 10, 64); err == nil {
		s.Size = x
	}
	if x, err := strconv.ParseFloat(strings.TrimSuffix(b.values["speed"], "x"), 64); err == nil {
		s.Speed = x
	}
	if x, err := strconv.ParseUint(b.values["drop_frames"], 10, 64); err == nil {
		s.Drop = x
	}
	if x, err := strconv.ParseUint(b.values["dup_frames"], 10, 64); err == nil {
		s.Dup = x
	}
	return s
}

// Reset clears the block for the next round.
func (b *Block) Reset() {
	clear(b.values)
}
