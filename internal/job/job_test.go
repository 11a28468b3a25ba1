// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package job

import (
	"errors"
	"strings"
	"testing"
)

func strptr(s string) *string { return &s }

func TestRoundTrip(t *testing.T) {
	jobs := []*Job{
		{InputLocation: "/tmp/uploads/a.mov", OutputLocation: "/tmp/uploads/a.mov.mp4", Dimensions: Dimensions{1280, 720}},
		{ID: "x1", InputLocation: "s3://in/b.mov", OutputLocation: "s3://in/b.mov.mp4", Dimensions: Dimensions{1, 1}, AudioCodec: strptr("aac")},
		{InputLocation: "http://example.com/ü.mkv", OutputLocation: "out \"quoted\".mp4", Dimensions: Dimensions{4294967295, 2}, AudioCodec: strptr("libopus")},
	}

	for _, j := range jobs {
		payload, err := Marshal(j)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		got, err := Unmarshal(payload)
		if err != nil {
			t.Fatalf("Unmarshal(%s): %v", payload, err)
		}
		if !got.Equal(j) {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, j)
		}
	}
}

func TestAbsentAudioCodecIsNull(t *testing.T) {
	payload, err := Marshal(&Job{InputLocation: "a", OutputLocation: "b", Dimensions: Dimensions{2, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload, `"audio_codec":null`) {
		t.Fatalf("expected nullable audio codec in %s", payload)
	}
}

func TestUnmarshalFromOtherProducer(t *testing.T) {
	payload := `{"input_uri":"/u/1.mov","output_uri":"/u/1.mov.mp4","new_dimensions":{"width":640,"height":360},"audio_codec":null}`
	j, err := Unmarshal(payload)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if j.Dimensions.String() != "640x360" || j.AudioCodec != nil || j.Codec() != "" {
		t.Fatalf("unexpected job %+v", j)
	}
}

func TestUnmarshalRejects(t *testing.T) {
	cases := map[string]error{
		`not json`: ErrDecode,
		`{"input_uri":"","output_uri":"o","new_dimensions":{"width":1,"height":1}}`:     ErrInvalidJob,
		`{"input_uri":"i","output_uri":"o","new_dimensions":{"width":0,"height":1}}`:    ErrInvalidJob,
		`{"input_uri":"i","output_uri":"o","new_dimensions":{"width":1,"height":-1}}`:   ErrDecode,
		`{"input_uri":"i","output_uri":"o","new_dimensions":{"width":1,"height":1},"audio_codec":" "}`: ErrInvalidJob,
	}
	for payload, want := range cases {
		if _, err := Unmarshal(payload); !errors.Is(err, want) {
			t.Fatalf("Unmarshal(%s) = %v, want %v", payload, err, want)
		}
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New("", "in", "", Dimensions{1, 1}, nil); !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("expected invalid job for empty output, got %v", err)
	}
	j, err := New("id", "in.mov", OutputFor("in.mov"), Dimensions{320, 240}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if j.OutputLocation != "in.mov.mp4" {
		t.Fatalf("output = %q", j.OutputLocation)
	}
}
