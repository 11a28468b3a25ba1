// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VPaaS - FFmpeg 转码任务队列

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ZSC714725/vpaas/internal/ffmpeg/skills"
	"github.com/ZSC714725/vpaas/internal/job"
	"github.com/ZSC714725/vpaas/internal/queue"
	"github.com/ZSC714725/vpaas/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProber struct {
	skills   skills.Skills
	reloaded int
	err      error
}

func (p *fakeProber) Skills() skills.Skills { return p.skills }

func (p *fakeProber) ReloadSkills() error {
	p.reloaded++
	return p.err
}

type env struct {
	router *gin.Engine
	queue  queue.Queue
	dir    string
	mr     *miniredis.Miniredis
}

func newEnv(t *testing.T, prober Prober, maxBytes int64) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	dir := t.TempDir()
	st, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}

	q := queue.NewRedis(client, queue.Config{
		PollTimeout: time.Second,
		Backoff:     queue.Backoff{MaxAttempts: 2, Initial: time.Millisecond, Max: 2 * time.Millisecond},
	})
	h := NewHandler(Config{
		Queue:     q,
		QueueName: queue.DefaultName,
		Storage:   st,
		Prober:    prober,
		MaxBytes:  maxBytes,
	})
	return &env{router: NewRouter(h, nil), queue: q, dir: dir, mr: mr}
}

type field struct {
	name, value string
	file        bool
}

func upload(t *testing.T, e *env, fields ...field) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range fields {
		if f.file {
			fw, _ := w.CreateFormFile(f.name, "clip.mov")
			fw.Write([]byte(f.value))
			continue
		}
		w.WriteField(f.name, f.value)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/videos", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	e := newEnv(t, nil, 0)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "Hello, World!" {
		t.Fatalf("GET / = %d %q", rec.Code, rec.Body.String())
	}
}

func TestNewVideoJob(t *testing.T) {
	e := newEnv(t, nil, 0)

	rec := upload(t, e,
		field{name: "new_dimension", value: `{"width":640,"height":360}`},
		field{name: "file", value: "fake movie", file: true},
	)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var created JobCreated
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.OutstandingJobs != 1 || created.ID == "" {
		t.Fatalf("response = %+v", created)
	}
	if !strings.HasPrefix(created.Input, e.dir) || !strings.HasSuffix(created.Input, created.ID+".mov") {
		t.Fatalf("input = %s", created.Input)
	}
	if data, _ := os.ReadFile(created.Input); string(data) != "fake movie" {
		t.Fatalf("stored upload = %q", data)
	}

	d, err := e.queue.Dequeue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	j := d.Job
	want := &job.Job{
		ID:             created.ID,
		InputLocation:  created.Input,
		OutputLocation: created.Input + ".mp4",
		Dimensions:     job.Dimensions{Width: 640, Height: 360},
	}
	if !j.Equal(want) {
		t.Fatalf("queued %+v, want %+v", j, want)
	}
}

func TestNewVideoJobWithAudioCodec(t *testing.T) {
	prober := &fakeProber{skills: skills.Skills{
		Codecs: skills.Codecs{Audio: []skills.Codec{{Id: "aac", Encoders: []string{"aac"}}}},
	}}
	e := newEnv(t, prober, 0)

	rec := upload(t, e,
		field{name: "file", value: "x", file: true},
		field{name: "new_dimension", value: `{"width":2,"height":2}`},
		field{name: "audio_codec", value: "aac"},
	)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	d, _ := e.queue.Dequeue(context.Background())
	if d.Job.Codec() != "aac" {
		t.Fatalf("codec = %q", d.Job.Codec())
	}

	rec = upload(t, e,
		field{name: "file", value: "x", file: true},
		field{name: "new_dimension", value: `{"width":2,"height":2}`},
		field{name: "audio_codec", value: "opus"},
	)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported codec accepted: %d", rec.Code)
	}
}

func TestNewVideoJobRejects(t *testing.T) {
	e := newEnv(t, nil, 0)
	file := field{name: "file", value: "movie", file: true}
	dims := field{name: "new_dimension", value: `{"width":640,"height":360}`}

	cases := map[string][]field{
		"unknown field":   {file, dims, {name: "newResolution", value: "1"}},
		"missing file":    {dims},
		"missing dims":    {file},
		"broken dims":     {file, {name: "new_dimension", value: `{"width":`}},
		"zero width":      {file, {name: "new_dimension", value: `{"width":0,"height":360}`}},
		"negative height": {file, {name: "new_dimension", value: `{"width":10,"height":-1}`}},
		"missing height":  {file, {name: "new_dimension", value: `{"width":10}`}},
		"string width":    {file, {name: "new_dimension", value: `{"width":"10","height":10}`}},
		"dims then junk":  {dims, file, {name: "junk", value: "1"}},
		"two files":       {file, dims, file},
	}
	for name, fields := range cases {
		rec := upload(t, e, fields...)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: body = %s", name, rec.Body.String())
		}
	}

	if n, _ := e.queue.Len(context.Background()); n != 0 {
		t.Fatalf("rejected uploads were queued: %d", n)
	}
	if entries, _ := os.ReadDir(e.dir); len(entries) != 0 {
		t.Fatalf("rejected uploads left behind: %v", entries)
	}

	req := httptest.NewRequest(http.MethodPost, "/videos", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non multipart body: %d", rec.Code)
	}
}

func TestNewVideoJobTooLarge(t *testing.T) {
	e := newEnv(t, nil, 1024)
	rec := upload(t, e,
		field{name: "new_dimension", value: `{"width":640,"height":360}`},
		field{name: "file", value: strings.Repeat("x", 4096), file: true},
	)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	entries, _ := os.ReadDir(e.dir)
	if len(entries) != 0 {
		t.Fatalf("partial upload left behind: %v", entries)
	}
}

func TestNewVideoJobQueueDown(t *testing.T) {
	e := newEnv(t, nil, 0)
	e.mr.Close()

	rec := upload(t, e,
		field{name: "file", value: "x", file: true},
		field{name: "new_dimension", value: `{"width":2,"height":2}`},
	)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if entries, _ := os.ReadDir(e.dir); len(entries) != 0 {
		t.Fatalf("upload of an unqueued job left behind: %v", entries)
	}
}

func TestQueueStatus(t *testing.T) {
	e := newEnv(t, nil, 0)
	e.queue.Enqueue(context.Background(), &job.Job{InputLocation: "a", OutputLocation: "b", Dimensions: job.Dimensions{Width: 1, Height: 1}})

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue", nil))
	var st QueueStatus
	json.Unmarshal(rec.Body.Bytes(), &st)
	if rec.Code != http.StatusOK || st.OutstandingJobs != 1 || st.Name != queue.DefaultName {
		t.Fatalf("GET /queue = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSkills(t *testing.T) {
	e := newEnv(t, nil, 0)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/skills", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("skills without transcoder = %d", rec.Code)
	}

	prober := &fakeProber{}
	prober.skills.FFmpeg.Version = "6.1.1"
	prober.skills.Protocols.Input = []skills.Protocol{{Id: "file", Name: "file"}}
	e = newEnv(t, prober, 0)

	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/skills", nil))
	var resp SkillsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.FFmpeg.Version != "6.1.1" || len(resp.Protocols.Input) != 1 || resp.Protocols.Input[0].ID != "file" {
		t.Fatalf("skills = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/skills/reload", nil))
	if rec.Code != http.StatusOK || prober.reloaded != 1 {
		t.Fatalf("reload = %d", rec.Code)
	}

	prober.err = errors.New("binary vanished")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/skills/reload", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("failed reload = %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	e := newEnv(t, nil, 0)
	req := httptest.NewRequest(http.MethodOptions, "/videos", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}
