// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package parse

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestParserRecordsFirstDuration(t *testing.T) {
	p := New(Config{LogLines: 3})

	if _, ok := p.Duration(); ok {
		t.Fatalf("duration known before any line")
	}

	p.Parse("ffmpeg version 6.1")
	p.Parse("  Duration: N/A, bitrate: N/A")
	p.Parse("  Duration: 00:01:00.00, start: 0.000000, bitrate: 1205 kb/s")
	p.Parse("  Duration: 00:09:00.00, start: 0.000000")

	d, ok := p.Duration()
	if !ok || d != time.Minute {
		t.Fatalf("Duration = %v, %v", d, ok)
	}

	lines := p.Log()
	if len(lines) != 3 {
		t.Fatalf("expected ring of 3 lines, got %d", len(lines))
	}
	if lines[2].Data != "  Duration: 00:09:00.00, start: 0.000000" {
		t.Fatalf("last log line = %q", lines[2].Data)
	}
}

func TestParserConcurrentReaders(t *testing.T) {
	p := New(Config{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if d, ok := p.Duration(); ok && d != 90*time.Second {
					t.Errorf("torn duration %v", d)
					return
				}
			}
		}()
	}
	p.Parse("Duration: 00:01:30.00")
	wg.Wait()
}

func TestBlock(t *testing.T) {
	b := NewBlock()
	lines := []string{
		"frame=120",
		"fps=29.97",
		"bitrate=1024.5kbits/s",
		"total_size=2048",
		"out_time=00:00:30.000000",
		"dup_frames=1",
		"drop_frames=N/A",
		"speed=2.5x",
	}
	for _, l := range lines {
		end, err := b.Add(l)
		if err != nil || end {
			t.Fatalf("Add(%q) = %v, %v", l, end, err)
		}
	}
	end, err := b.Add("progress=continue")
	if err != nil || !end {
		t.Fatalf("delimiter not recognised: %v, %v", end, err)
	}

	elapsed, err := b.Elapsed(FractionDecimal)
	if err != nil || elapsed != 30*time.Second {
		t.Fatalf("Elapsed = %v, %v", elapsed, err)
	}

	s := b.Stats()
	if s.Frame != 120 || s.Size != 2048 || s.Speed != 2.5 || s.Dup != 1 || s.Drop != 0 || s.End {
		t.Fatalf("unexpected stats %+v", s)
	}

	b.Reset()
	if _, err := b.Elapsed(FractionDecimal); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("reset block should have no out_time, got %v", err)
	}
}

func TestBlockSplitsOnFirstSeparator(t *testing.T) {
	b := NewBlock()
	if _, err := b.Add("stream_0_0_q=-1.0=x"); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Get("stream_0_0_q"); v != "-1.0=x" {
		t.Fatalf("value = %q", v)
	}
}

func TestBlockProtocolError(t *testing.T) {
	b := NewBlock()
	for _, line := range []string{"garbage", "=value"} {
		_, err := b.Add(line)
		var perr *ProtocolError
		if !errors.As(err, &perr) || perr.Line != line || !errors.Is(err, ErrProtocol) {
			t.Fatalf("Add(%q) = %v, want ProtocolError", line, err)
		}
	}
}
