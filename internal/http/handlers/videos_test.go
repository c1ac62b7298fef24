package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"server/internal/providers/evolink"
	"server/internal/sqlinline"
)

func TestGenerateVideoRequiresAuth(t *testing.T) {
	vendor := &stubVendor{taskID: "vid-1"}
	app := newTestApp(&stubSQL{}, vendor, &stubPersister{})

	req := httptest.NewRequest(http.MethodPost, "/api/ai/videos/generate", strings.NewReader(`{"prompt":"waves"}`))
	rec, env := doRequest(t, app.GenerateVideo, req, "")

	if rec.Code != http.StatusUnauthorized || env.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d code=%d, want 401/401", rec.Code, env.Code)
	}
	if vendor.submissions() != 0 {
		t.Fatal("vendor must not be called for unauthenticated requests")
	}
}

func TestGenerateVideoValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty prompt", `{"prompt":""}`},
		{"bad duration", `{"prompt":"waves","duration":5}`},
		{"bad resolution", `{"prompt":"waves","resolution":"480p"}`},
		{"bad aspect", `{"prompt":"waves","aspectRatio":"4:3"}`},
		{"i2v without image", `{"prompt":"waves","mode":"image-to-video"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vendor := &stubVendor{taskID: "vid-1"}
			app := newTestApp(&stubSQL{}, vendor, &stubPersister{})

			req := httptest.NewRequest(http.MethodPost, "/api/ai/videos/generate", strings.NewReader(tc.body))
			rec, env := doRequest(t, app.GenerateVideo, req, "user-1")

			if rec.Code != http.StatusBadRequest || env.Code != http.StatusBadRequest {
				t.Fatalf("status=%d code=%d, want 400/400", rec.Code, env.Code)
			}
			if vendor.submissions() != 0 {
				t.Fatal("invalid requests must not reach the vendor")
			}
		})
	}
}

func TestGenerateVideoDefaultsAndSubmit(t *testing.T) {
	sql := &stubSQL{rows: map[string]func(args ...any) fakeRow{
		sqlinline.QSpendCredits: func(args ...any) fakeRow {
			if got := args[1].(int); got != 20 {
				t.Fatalf("debited %d credits, want 20", got)
			}
			return scanInt(80)
		},
	}}
	vendor := &stubVendor{taskID: "vid-1"}
	app := newTestApp(sql, vendor, &stubPersister{})

	req := httptest.NewRequest(http.MethodPost, "/api/ai/videos/generate", strings.NewReader(`{"prompt":"waves at sunset"}`))
	rec, env := doRequest(t, app.GenerateVideo, req, "user-1")

	if rec.Code != http.StatusOK || env.Code != CodeSuccess {
		t.Fatalf("status=%d code=%d, want 200/%d", rec.Code, env.Code, CodeSuccess)
	}
	if got := dataMap(t, env)["taskId"]; got != "vid-1" {
		t.Fatalf("taskId = %v, want vid-1", got)
	}
	call := vendor.videoCalls[0]
	if call.Duration != 8 || call.Resolution != "720p" || call.AspectRatio != "16:9" {
		t.Fatalf("defaults not applied: %+v", call)
	}
	if call.Model != "veo3.1-fast" {
		t.Fatalf("model = %q, want configured video model", call.Model)
	}
}

func TestGenerateVideoImageToVideo(t *testing.T) {
	vendor := &stubVendor{taskID: "vid-1"}
	app := newTestApp(&stubSQL{rows: spendCreditsOK()}, vendor, &stubPersister{})

	body := `{"prompt":"animate this","mode":"image-to-video","imageUrl":"https://img.example.com/ref.png","duration":4,"resolution":"1080p","aspectRatio":"9:16"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ai/videos/generate", strings.NewReader(body))
	_, env := doRequest(t, app.GenerateVideo, req, "user-1")

	if env.Code != CodeSuccess {
		t.Fatalf("code = %d, want %d", env.Code, CodeSuccess)
	}
	call := vendor.videoCalls[0]
	if len(call.ImageURLs) != 1 || call.ImageURLs[0] != "https://img.example.com/ref.png" {
		t.Fatalf("image urls = %v, want the reference image", call.ImageURLs)
	}
}

func TestVideoTaskStatusRequiresTaskID(t *testing.T) {
	app := newTestApp(&stubSQL{}, &stubVendor{}, &stubPersister{})

	req := httptest.NewRequest(http.MethodGet, "/api/ai/videos/task-status", nil)
	rec, env := doRequest(t, app.VideoTaskStatus, req, "user-1")

	if rec.Code != http.StatusBadRequest || env.Code != http.StatusBadRequest {
		t.Fatalf("status=%d code=%d, want 400/400", rec.Code, env.Code)
	}
}

func TestVideoTaskStatusCompleted(t *testing.T) {
	vendor := &stubVendor{tasks: map[string]*evolink.Task{
		"vid-1": {ID: "vid-1", Status: "success", Results: []string{"https://transient.example.com/clip.mp4"}},
	}}
	persister := &stubPersister{}
	app := newTestApp(&stubSQL{}, vendor, persister)

	req := httptest.NewRequest(http.MethodGet, "/api/ai/videos/task-status?taskId=vid-1", nil)
	_, env := doRequest(t, app.VideoTaskStatus, req, "user-1")
	data := dataMap(t, env)

	if data["status"] != "success" {
		t.Fatalf("status = %v, want success", data["status"])
	}
	if data["progress"] != float64(100) {
		t.Fatalf("progress = %v, want 100", data["progress"])
	}
	if got, _ := data["videoUrl"].(string); !strings.HasPrefix(got, "https://cdn.example.com/") {
		t.Fatalf("videoUrl = %v, want durable url", data["videoUrl"])
	}
	if persister.calls != 1 {
		t.Fatalf("persister calls = %d, want 1", persister.calls)
	}
}

func TestVideoTaskStatusErrorChain(t *testing.T) {
	cases := []struct {
		name string
		task *evolink.Task
		want string
	}{
		{"error field", &evolink.Task{Status: "failed", Error: "prompt rejected", Message: "task failed"}, "prompt rejected"},
		{"message fallback", &evolink.Task{Status: "failed", Message: "task failed"}, "task failed"},
		{"default fallback", &evolink.Task{Status: "failed"}, "video generation failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vendor := &stubVendor{tasks: map[string]*evolink.Task{"vid-1": tc.task}}
			app := newTestApp(&stubSQL{}, vendor, &stubPersister{})

			req := httptest.NewRequest(http.MethodGet, "/api/ai/videos/task-status?taskId=vid-1", nil)
			_, env := doRequest(t, app.VideoTaskStatus, req, "user-1")
			data := dataMap(t, env)

			if data["status"] != "failed" {
				t.Fatalf("status = %v, want failed", data["status"])
			}
			if data["error"] != tc.want {
				t.Fatalf("error = %v, want %q", data["error"], tc.want)
			}
		})
	}
}

func TestVideoTaskStatusUpstreamError(t *testing.T) {
	vendor := &stubVendor{getErr: &evolink.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}}
	app := newTestApp(&stubSQL{}, vendor, &stubPersister{})

	req := httptest.NewRequest(http.MethodGet, "/api/ai/videos/task-status?taskId=vid-1", nil)
	rec, env := doRequest(t, app.VideoTaskStatus, req, "user-1")

	if rec.Code != http.StatusBadGateway || env.Code != http.StatusBadGateway {
		t.Fatalf("status=%d code=%d, want 502/502", rec.Code, env.Code)
	}
}
