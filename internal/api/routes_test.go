package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bestof/clipper/internal/clips"
	"github.com/bestof/clipper/internal/entitlement"
	"github.com/bestof/clipper/internal/media"
	"github.com/bestof/clipper/internal/planner"
	"github.com/bestof/clipper/internal/playback"
	"github.com/bestof/clipper/internal/storage"
)

type fakeMetadata struct{}

func (fakeMetadata) Metadata(ctx context.Context, url string) (*media.SourceInfo, error) {
	if strings.Contains(url, "private") {
		return nil, errors.New("video unavailable")
	}
	return &media.SourceInfo{ID: "abc", Title: "Best Goals", Channel: "Sports", Duration: 600}, nil
}

type stubQueue struct {
	err   error
	tasks []clips.Task
}

func (q *stubQueue) Enqueue(task clips.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type freeTier struct{}

func (freeTier) Authorize(ctx context.Context, userID string, mode planner.Mode) error {
	if mode == planner.ModeLong {
		return &entitlement.DeniedError{UserID: userID, Reason: "long clips require a premium or pro plan"}
	}
	return nil
}

func (freeTier) RecordUsage(ctx context.Context, userID string) error { return nil }

type fakeDoctor struct{}

func (fakeDoctor) Get(ctx context.Context) media.Dependencies {
	return media.Dependencies{
		YTDLP:  media.ToolStatus{Available: true, Path: "/usr/bin/yt-dlp"},
		FFmpeg: media.ToolStatus{Available: true, Path: "/usr/bin/ffmpeg"},
	}
}

type fakeHistory struct {
	entries []*clips.HistoryEntry
	limit   int
}

func (f *fakeHistory) GetClip(ctx context.Context, id string) (*clips.HistoryEntry, error) {
	return nil, nil
}

func (f *fakeHistory) ListClips(ctx context.Context, limit int) ([]*clips.HistoryEntry, error) {
	f.limit = limit
	return f.entries, nil
}

type testEnv struct {
	router   http.Handler
	registry *clips.Registry
	queue    *stubQueue
	store    *storage.Store
	history  *fakeHistory
}

func newTestEnv(t *testing.T, mutate func(*ServerConfig)) *testEnv {
	t.Helper()
	logger := discardLogger()

	registry := clips.NewRegistry(nil, logger)
	queue := &stubQueue{}
	store := storage.New(t.TempDir(), logger)
	if err := store.Init(); err != nil {
		t.Fatalf("store.Init() error = %v", err)
	}
	history := &fakeHistory{}

	cfg := ServerConfig{
		Clips:          clips.NewService(registry, queue, fakeMetadata{}, freeTier{}, logger),
		Store:          store,
		History:        history,
		PlaybackServer: playback.NewServer(logger),
		Doctor:         fakeDoctor{},
		PublicBaseURL:  "https://clips.example.com",
		Version:        "test",
		Logger:         logger,
		StartTime:      time.Now(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &testEnv{
		router:   NewRouter(cfg),
		registry: registry,
		queue:    queue,
		store:    store,
		history:  history,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// submit creates a job through the API and returns its id.
func (e *testEnv) submit(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/clips", `{"url":"https://www.youtube.com/watch?v=abc"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body = %s", rr.Code, rr.Body.String())
	}
	return decodeJSONBody(t, rr)["clip_id"].(string)
}

// complete stores an artifact for id and moves the job to Completed.
func (e *testEnv) complete(t *testing.T, id string, content string) string {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	path, err := e.store.Persist(tmp, id)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if _, err := e.registry.Transition(id, clips.Downloading{StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	_, err = e.registry.Transition(id, clips.Completed{
		ArtifactPath:   path,
		CompletedAt:    time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		Plan:           planner.Plan{{Start: 12, End: 20}, {Start: 300, End: 310}},
		SourceDuration: 600,
	})
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v (%s)", err, rr.Body.String())
	}

	return body
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	body := decodeJSONBody(t, rr)
	if body["status"] != "success" || body["message"] != "API is running" {
		t.Errorf("body = %v", body)
	}
	deps, ok := body["dependencies"].(map[string]interface{})
	if !ok {
		t.Fatal("dependencies missing from response")
	}
	if ffprobe := deps["ffprobe"].(map[string]interface{}); ffprobe["available"] != false {
		t.Errorf("ffprobe = %v, want unavailable", ffprobe)
	}
}

func TestCreateClip_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty body", "", "No data provided"},
		{"empty object", "{}", "No data provided"},
		{"malformed json", "{", "No data provided"},
		{"missing url", `{"mode":"short"}`, "URL is required"},
		{"invalid mode", `{"url":"https://youtu.be/abc","mode":"medium"}`, `Mode must be either "short" or "long"`},
		{"uppercase mode", `{"url":"https://youtu.be/abc","mode":"SHORT"}`, `Mode must be either "short" or "long"`},
		{"padded mode", `{"url":"https://youtu.be/abc","mode":" long "}`, `Mode must be either "short" or "long"`},
		{"explicit empty mode", `{"url":"https://youtu.be/abc","mode":""}`, `Mode must be either "short" or "long"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			rr := env.do(t, http.MethodPost, "/api/clips", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			body := decodeJSONBody(t, rr)
			if body["status"] != "error" || body["message"] != tt.message {
				t.Errorf("body = %v, want message %q", body, tt.message)
			}
			if env.registry.Len() != 0 {
				t.Errorf("registry has %d jobs, want 0", env.registry.Len())
			}
		})
	}
}

func TestCreateClip_Accepted(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/clips", `{"url":"https://www.youtube.com/watch?v=abc"}`, "X-User-ID", "u-7")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}

	body := decodeJSONBody(t, rr)
	id, _ := body["clip_id"].(string)
	if body["status"] != "success" || body["message"] != "Clip generation started" || id == "" {
		t.Fatalf("body = %v", body)
	}

	if len(env.queue.tasks) != 1 || env.queue.tasks[0].JobID != id {
		t.Errorf("queued tasks = %v", env.queue.tasks)
	}

	job, err := env.registry.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.Mode != planner.ModeShort || !job.Transitions || job.UserID != "u-7" {
		t.Errorf("job mode = %s, transitions = %v, user = %q", job.Mode, job.Transitions, job.UserID)
	}
}

func TestCreateClip_TransitionsFalse(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/clips", `{"url":"https://youtu.be/abc","mode":"short","transitions":false}`)
	id := decodeJSONBody(t, rr)["clip_id"].(string)

	job, _ := env.registry.Get(id)
	if job.Transitions {
		t.Error("transitions = true, want false as requested")
	}
}

func TestCreateClip_SubmissionErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		queueErr error
		want     int
		wantJobs int
	}{
		{"metadata failure", `{"url":"https://youtu.be/private"}`, nil, http.StatusInternalServerError, 0},
		{"entitlement denied", `{"url":"https://youtu.be/abc","mode":"long"}`, nil, http.StatusForbidden, 0},
		{"queue full", `{"url":"https://youtu.be/abc"}`, clips.ErrQueueFull, http.StatusServiceUnavailable, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.queue.err = tt.queueErr

			rr := env.do(t, http.MethodPost, "/api/clips", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
			if msg, _ := decodeJSONBody(t, rr)["message"].(string); msg == "" {
				t.Error("error message is empty")
			}
			if env.registry.Len() != tt.wantJobs {
				t.Errorf("registry has %d jobs, want %d", env.registry.Len(), tt.wantJobs)
			}
		})
	}
}

func TestGetClip(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/clips/missing", "")
	if rr.Code != http.StatusNotFound || decodeJSONBody(t, rr)["message"] != "Clip not found" {
		t.Fatalf("unknown id: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	id := env.submit(t)
	clip := decodeJSONBody(t, env.do(t, http.MethodGet, "/api/clips/"+id, ""))["clip"].(map[string]interface{})
	if clip["status"] != "processing" || clip["title"] != "Best Goals" || clip["youtube_url"] != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("processing clip = %v", clip)
	}
	if _, ok := clip["download_url"]; ok {
		t.Error("download_url present before completion")
	}
	if clip["completed_at"] != nil {
		t.Errorf("completed_at = %v, want null", clip["completed_at"])
	}

	env.complete(t, id, "video-bytes")
	clip = decodeJSONBody(t, env.do(t, http.MethodGet, "/api/clips/"+id, ""))["clip"].(map[string]interface{})
	if clip["status"] != "completed" || clip["completed_at"] != "2024-06-01T10:30:00Z" {
		t.Errorf("completed clip = %v", clip)
	}
	if want := "https://clips.example.com/api/clips/" + id + "/download"; clip["download_url"] != want {
		t.Errorf("download_url = %v, want %s", clip["download_url"], want)
	}
	if segs, _ := clip["segments"].([]interface{}); len(segs) != 2 {
		t.Errorf("segments = %v, want 2", clip["segments"])
	}
}

func TestClipStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	if rr := env.do(t, http.MethodGet, "/api/clips/missing/status", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", rr.Code)
	}

	id := env.submit(t)

	pending := decodeJSONBody(t, env.do(t, http.MethodGet, "/api/clips/"+id+"/status", ""))["clip_status"].(map[string]interface{})
	if errField, ok := pending["error"]; !ok || errField != nil {
		t.Errorf("error = %v (present %v), want null while processing", errField, ok)
	}

	env.registry.Transition(id, clips.Failed{Error: "clip generation failed at fetch: gone", FailedAt: time.Now()})

	rr := env.do(t, http.MethodGet, "/api/clips/"+id+"/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	st := decodeJSONBody(t, rr)["clip_status"].(map[string]interface{})
	if st["id"] != id || st["status"] != "failed" || st["error"] != "clip generation failed at fetch: gone" {
		t.Errorf("clip_status = %v", st)
	}
	if st["completed_at"] != nil {
		t.Errorf("completed_at = %v, want null for a failed job", st["completed_at"])
	}
	if _, err := time.Parse(time.RFC3339, st["created_at"].(string)); err != nil {
		t.Errorf("created_at %v is not RFC3339: %v", st["created_at"], err)
	}
}

func TestListClips(t *testing.T) {
	env := newTestEnv(t, nil)
	env.submit(t)
	env.submit(t)
	newest := env.submit(t)

	body := decodeJSONBody(t, env.do(t, http.MethodGet, "/api/clips?limit=1", ""))
	list := body["clips"].([]interface{})
	if len(list) != 1 || list[0].(map[string]interface{})["id"] != newest {
		t.Errorf("clips = %v, want only %s", list, newest)
	}
}

func TestDownloadClip(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.submit(t)

	if rr := env.do(t, http.MethodGet, "/api/clips/"+id+"/download", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("download before completion: status = %d, want 404", rr.Code)
	}

	env.complete(t, id, "0123456789")

	rr := env.do(t, http.MethodGet, "/api/clips/"+id+"/download", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "0123456789" {
		t.Fatalf("download: status = %d, body = %q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "Best Goals.mp4") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rr = env.do(t, http.MethodGet, "/api/clips/"+id+"/download", "", "Range", "bytes=2-5")
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "2345" {
		t.Errorf("range download: status = %d, body = %q", rr.Code, rr.Body.String())
	}
}

func TestClipPlan(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.submit(t)

	if rr := env.do(t, http.MethodGet, "/api/clips/"+id+"/plan", ""); rr.Code != http.StatusConflict {
		t.Fatalf("plan before completion: status = %d, want 409", rr.Code)
	}

	env.complete(t, id, "x")

	body := decodeJSONBody(t, env.do(t, http.MethodGet, "/api/clips/"+id+"/plan", ""))
	if body["total_duration"] != 18.0 || body["source_duration"] != 600.0 || body["mode"] != "short" {
		t.Errorf("plan = %v", body)
	}

	rr := env.do(t, http.MethodGet, "/api/clips/"+id+"/plan?format=edl", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("edl status = %d", rr.Code)
	}
	edl := rr.Body.String()
	if !strings.HasPrefix(edl, "TITLE: Best Goals") || !strings.Contains(edl, "002  AX") {
		t.Errorf("edl = %q", edl)
	}
}

func TestDeleteArtifact(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.submit(t)
	env.complete(t, id, "x")

	if rr := env.do(t, http.MethodDelete, "/api/clips/"+id+"/artifact", ""); rr.Code != http.StatusOK {
		t.Fatalf("first delete: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodDelete, "/api/clips/"+id+"/artifact", ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/clips/"+id+"/download", ""); rr.Code != http.StatusNotFound {
		t.Errorf("download after delete: status = %d, want 404", rr.Code)
	}
}

func TestStorageHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	env.complete(t, env.submit(t), "12345")

	body := decodeJSONBody(t, env.do(t, http.MethodGet, "/api/storage", ""))
	st := body["storage"].(map[string]interface{})
	if st["exists"] != true || st["clips_count"] != 1.0 || st["total_size"] != 5.0 {
		t.Errorf("storage = %v", st)
	}
}

func TestHistoryHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	env.history.entries = []*clips.HistoryEntry{{ID: "old-1", Status: clips.StatusFailed, Error: "interrupted by restart"}}

	body := decodeJSONBody(t, env.do(t, http.MethodGet, "/api/history?limit=5", ""))
	list := body["clips"].([]interface{})
	if len(list) != 1 || list[0].(map[string]interface{})["error"] != "interrupted by restart" {
		t.Errorf("history = %v", list)
	}
	if env.history.limit != 5 {
		t.Errorf("limit passed = %d, want 5", env.history.limit)
	}
}

func TestRouter_APIToken(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig) { cfg.APIToken = "topsecret-token" })

	if rr := env.do(t, http.MethodGet, "/api/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health without token: status = %d, want 200", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/clips", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("clips without token: status = %d, want 401", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/clips", "", "Authorization", "Bearer topsecret-token"); rr.Code != http.StatusOK {
		t.Errorf("clips with token: status = %d, want 200", rr.Code)
	}
}
