// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type recorder struct {
	updates []Update
}

func (r *recorder) Report(u Update) { r.updates = append(r.updates, u) }

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Info(format string, args ...interface{}) {
	l.lines = append(l.lines, "INFO "+fmt.Sprintf(format, args...))
}

func (l *captureLogger) Error(format string, args ...interface{}) {
	l.lines = append(l.lines, "ERROR "+fmt.Sprintf(format, args...))
}

func TestFraction(t *testing.T) {
	if got := Fraction(30, 60); got != 0.5 {
		t.Fatalf("Fraction(30, 60) = %v", got)
	}
	if got := Fraction(90, 60); got != 1 {
		t.Fatalf("overshoot should clamp to 1, got %v", got)
	}
	if got := Fraction(-1, 60); got != 0 {
		t.Fatalf("negative should clamp to 0, got %v", got)
	}
	if got := Fraction(1, 0); !math.IsNaN(got) {
		t.Fatalf("unknown total should be NaN, got %v", got)
	}
}

func TestMonotonic(t *testing.T) {
	rec := &recorder{}
	s := Monotonic(rec)

	s.Report(Update{Percentage: math.NaN(), State: InProgress})
	s.Report(Update{Percentage: 0.5, State: InProgress})
	s.Report(Update{Percentage: 0, State: Pending})
	s.Report(Update{Percentage: 1, State: Finished})
	s.Report(Update{Percentage: 1, State: InProgress})
	s.Report(Update{Percentage: 1, State: Failed})

	if len(rec.updates) != 3 {
		t.Fatalf("expected 3 updates, got %v", rec.updates)
	}
	if rec.updates[2].State != Finished {
		t.Fatalf("last update = %v", rec.updates[2])
	}
}

func TestMultiAndFunc(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var seen int
	s := Multi(a, nil, b, SinkFunc(func(Update) { seen++ }))
	s.Report(Update{Percentage: 0.25, State: InProgress})
	if len(a.updates) != 1 || len(b.updates) != 1 || seen != 1 {
		t.Fatalf("fan out failed: %d %d %d", len(a.updates), len(b.updates), seen)
	}
}

func TestLogSink(t *testing.T) {
	l := &captureLogger{}
	s := NewLogSink(l, "job1")
	s.Report(Update{Percentage: math.NaN(), State: InProgress})
	s.Report(Update{Percentage: 0.5, State: InProgress})
	s.Report(Update{Percentage: 0.5, State: Failed})

	want := []string{
		"INFO job job1 current progress: n/a",
		"INFO job job1 current progress: 50.00 %",
		"ERROR job job1 failed at 50.00 %",
	}
	if strings.Join(l.lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("log lines = %q", l.lines)
	}
}

func TestMarshalNaNAsNull(t *testing.T) {
	data, err := json.Marshal(Update{Percentage: math.NaN(), State: InProgress})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"percentage":null,"state":"in_progress"}` {
		t.Fatalf("json = %s", data)
	}
}

func TestPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	pub := NewPublisher(client, "vpaas:progress", &captureLogger{})

	sub := client.Subscribe(ctx, pub.Channel("j1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub.Sink(ctx, "j1").Report(Update{Percentage: 1, State: Finished})

	select {
	case msg := <-sub.Channel():
		if msg.Payload != `{"job_id":"j1","percentage":1,"state":"finished"}` {
			t.Fatalf("payload = %s", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message published")
	}
}
