package handlers

import (
	"net/http"
	"strings"

	"server/internal/generation"
	"server/internal/providers/evolink"
)

var (
	videoDurations   = map[int]bool{4: true, 6: true, 8: true}
	videoResolutions = map[string]bool{"720p": true, "1080p": true, "4K": true}
	videoAspects     = map[string]bool{"16:9": true, "9:16": true}
)

type generateVideoRequest struct {
	Prompt         string `json:"prompt"`
	Mode           string `json:"mode"`
	ImageURL       string `json:"imageUrl"`
	Duration       int    `json:"duration"`
	Resolution     string `json:"resolution"`
	AspectRatio    string `json:"aspectRatio"`
	NegativePrompt string `json:"negativePrompt"`
	EnableAudio    bool   `json:"enableAudio"`
}

// GenerateVideo validates the request, debits the video credit cost, and
// submits a video task. Image-to-video mode requires a reference image.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	var req generateVideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		a.fail(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Duration == 0 {
		req.Duration = 8
	}
	if !videoDurations[req.Duration] {
		a.fail(w, http.StatusBadRequest, "duration must be 4, 6, or 8 seconds")
		return
	}
	if req.Resolution == "" {
		req.Resolution = "720p"
	}
	if !videoResolutions[req.Resolution] {
		a.fail(w, http.StatusBadRequest, "unsupported resolution")
		return
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "16:9"
	}
	if !videoAspects[req.AspectRatio] {
		a.fail(w, http.StatusBadRequest, "unsupported aspect ratio")
		return
	}
	var imageURLs []string
	if strings.EqualFold(req.Mode, "image-to-video") {
		if strings.TrimSpace(req.ImageURL) == "" {
			a.fail(w, http.StatusBadRequest, "imageUrl is required for image-to-video")
			return
		}
		imageURLs = []string{strings.TrimSpace(req.ImageURL)}
	}

	if _, err := a.spendCredits(r.Context(), userID, a.Config.VideoCreditCost, "video_generation", "video generation"); err != nil {
		if err == errInsufficientCredits {
			a.fail(w, http.StatusForbidden, "insufficient credits")
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("credit debit failed")
		a.fail(w, http.StatusInternalServerError, "could not start generation")
		return
	}

	taskID, err := a.Vendor.CreateVideoTask(r.Context(), evolink.VideoTaskRequest{
		Model:          a.Config.VideoModel,
		Prompt:         req.Prompt,
		Duration:       req.Duration,
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
		ImageURLs:      imageURLs,
		NegativePrompt: req.NegativePrompt,
		EnableAudio:    req.EnableAudio,
	})
	if err != nil {
		a.failVendor(w, r, err)
		return
	}

	a.Logger.Info().
		Str("user_id", userID).
		Str("task_id", taskID).
		Msg("video task submitted")
	a.ok(w, map[string]string{"taskId": taskID})
}

// VideoTaskStatus reports the state of a video task in the shape the video
// client expects: a completed task becomes status "success" with the
// (durable where possible) video url.
func (a *App) VideoTaskStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.currentUserID(w, r); !ok {
		return
	}
	taskID := strings.TrimSpace(r.URL.Query().Get("taskId"))
	if taskID == "" {
		a.fail(w, http.StatusBadRequest, "taskId is required")
		return
	}

	task, err := a.Vendor.GetTask(r.Context(), taskID)
	if err != nil {
		a.failVendor(w, r, err)
		return
	}

	status := generation.NormalizeStatus(task.Status)
	switch status {
	case generation.StatusCompleted:
		durable := a.Persister.PersistResults(r.Context(), taskID, generation.KindVideo, task.Results)
		result := generation.NewResult(generation.KindVideo, durable)
		a.ok(w, map[string]any{
			"taskId":   taskID,
			"status":   "success",
			"progress": 100,
			"videoUrl": result.VideoURL,
		})
	case generation.StatusFailed:
		a.ok(w, map[string]any{
			"taskId": taskID,
			"status": string(generation.StatusFailed),
			"error":  generation.FailureMessage(task.Error, task.Message, "video generation failed"),
		})
	default:
		a.ok(w, map[string]any{
			"taskId":   taskID,
			"status":   string(status),
			"progress": task.Progress,
		})
	}
}
