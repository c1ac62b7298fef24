package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"server/internal/generation"
	"server/internal/providers/evolink"
)

// imageSizes maps the aspect ratios the UI offers onto vendor size strings.
var imageSizes = map[string]string{
	"1:1":  "1024x1024",
	"16:9": "1344x768",
	"9:16": "768x1344",
	"4:3":  "1152x896",
	"3:4":  "896x1152",
}

const defaultImageQuality = "2K"

type generateImageRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
	Quality     string `json:"quality"`
}

// GenerateImage validates the request, debits the image credit cost, and
// submits an image task to the vendor. The response carries only the task
// id; the client polls for the outcome.
func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	var req generateImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		a.fail(w, http.StatusBadRequest, "prompt is required")
		return
	}

	size := ""
	if req.AspectRatio != "" {
		var known bool
		if size, known = imageSizes[req.AspectRatio]; !known {
			a.fail(w, http.StatusBadRequest, "unsupported aspect ratio")
			return
		}
	}
	quality := req.Quality
	if quality == "" {
		quality = defaultImageQuality
	}

	if _, err := a.spendCredits(r.Context(), userID, a.Config.ImageCreditCost, "image_generation", "image generation"); err != nil {
		if err == errInsufficientCredits {
			a.fail(w, http.StatusForbidden, "insufficient credits")
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("credit debit failed")
		a.fail(w, http.StatusInternalServerError, "could not start generation")
		return
	}

	taskID, err := a.Vendor.CreateImageTask(r.Context(), evolink.ImageTaskRequest{
		Model:   a.Config.ImageModel,
		Prompt:  req.Prompt,
		Size:    size,
		Quality: quality,
	})
	if err != nil {
		a.failVendor(w, r, err)
		return
	}

	a.Logger.Info().
		Str("user_id", userID).
		Str("task_id", taskID).
		Msg("image task submitted")
	a.ok(w, map[string]string{"taskId": taskID})
}

// ImageTaskStatus reports the state of an image task. Completed results are
// persisted before the response is written; the returned urls are durable
// copies where persistence succeeded and the vendor originals where it did
// not.
func (a *App) ImageTaskStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.currentUserID(w, r); !ok {
		return
	}
	taskID := chi.URLParam(r, "task_id")
	if taskID == "" {
		a.fail(w, http.StatusBadRequest, "task_id is required")
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
		durable := a.Persister.PersistResults(r.Context(), taskID, generation.KindImage, task.Results)
		a.ok(w, map[string]any{
			"taskId":           taskID,
			"status":           string(generation.StatusCompleted),
			"progress":         100,
			"results":          durable,
			"original_results": task.Results,
		})
	case generation.StatusFailed:
		a.ok(w, map[string]any{
			"taskId": taskID,
			"status": string(generation.StatusFailed),
			"error":  generation.FailureMessage(task.Error, task.Message, "image generation failed"),
		})
	default:
		a.ok(w, map[string]any{
			"taskId":   taskID,
			"status":   string(status),
			"progress": task.Progress,
		})
	}
}
