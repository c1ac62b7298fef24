package handlers

import "net/http"

type modelInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Modes       []string `json:"modes"`
	Durations   []int    `json:"durations,omitempty"`
	Resolutions []string `json:"resolutions,omitempty"`
	Aspects     []string `json:"aspects"`
	Default     bool     `json:"default"`
}

// VideoModels returns the model catalog the video UI renders its options
// from. The catalog is static; availability is decided at submit time.
func (a *App) VideoModels(w http.ResponseWriter, r *http.Request) {
	a.ok(w, map[string]any{
		"models": []modelInfo{
			{
				ID:          a.Config.VideoModel,
				Name:        "Veo 3.1 Fast",
				Modes:       []string{"text-to-video", "image-to-video"},
				Durations:   []int{4, 6, 8},
				Resolutions: []string{"720p", "1080p", "4K"},
				Aspects:     []string{"16:9", "9:16"},
				Default:     true,
			},
		},
	})
}
