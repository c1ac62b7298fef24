package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/generation"
	"server/internal/infra"
	"server/internal/poller"
)

// genctl submits a generation request to a running API instance and polls
// it to completion, printing progress along the way.
func main() {
	_ = godotenv.Load()

	var (
		apiURL     = flag.String("api", envOr("GENCTL_API_URL", "http://localhost:8080"), "base URL of the API server")
		token      = flag.String("token", os.Getenv("GENCTL_TOKEN"), "session JWT (Bearer token)")
		kindFlag   = flag.String("kind", "image", "generation kind: image or video")
		prompt     = flag.String("prompt", "", "generation prompt")
		aspect     = flag.String("aspect", "", "aspect ratio")
		quality    = flag.String("quality", "", "image quality")
		duration   = flag.Int("duration", 0, "video duration in seconds")
		resolution = flag.String("resolution", "", "video resolution")
		imageURL   = flag.String("image-url", "", "reference image for image-to-video")
	)
	flag.Parse()

	logger := infra.NewLogger(envOr("APP_ENV", "development"))

	if strings.TrimSpace(*prompt) == "" {
		fmt.Fprintln(os.Stderr, "genctl: -prompt is required")
		os.Exit(2)
	}
	if *token == "" {
		fmt.Fprintln(os.Stderr, "genctl: -token (or GENCTL_TOKEN) is required")
		os.Exit(2)
	}
	kind := generation.Kind(*kindFlag)
	if kind != generation.KindImage && kind != generation.KindVideo {
		fmt.Fprintln(os.Stderr, "genctl: -kind must be image or video")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := apiClient{
		baseURL: strings.TrimRight(*apiURL, "/"),
		token:   *token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	submit := func(ctx context.Context) (string, error) {
		if kind == generation.KindVideo {
			return client.submitVideo(ctx, videoRequest{
				Prompt:     *prompt,
				Duration:   *duration,
				Resolution: *resolution,
				Aspect:     *aspect,
				ImageURL:   *imageURL,
			})
		}
		return client.submitImage(ctx, imageRequest{
			Prompt:  *prompt,
			Aspect:  *aspect,
			Quality: *quality,
		})
	}

	fetch := client.fetchImageStatus
	if kind == generation.KindVideo {
		fetch = client.fetchVideoStatus
	}

	session, err := poller.New(fetch, logger).Run(ctx, poller.ConfigFor(kind), submit, printProgress)
	if err != nil {
		logger.Fatal().Err(err).Msg("generation aborted")
	}

	fmt.Println()
	switch session.State {
	case poller.StateSucceeded:
		for _, url := range session.Results {
			fmt.Println(url)
		}
	case poller.StateFailed:
		fmt.Fprintf(os.Stderr, "genctl: generation failed: %s\n", session.FailureMessage)
		os.Exit(1)
	case poller.StateTimedOut:
		fmt.Fprintf(os.Stderr, "genctl: %s (task %s may still finish server-side)\n", session.FailureMessage, session.TaskID)
		os.Exit(1)
	}
}

func printProgress(s *poller.Session) {
	switch s.State {
	case poller.StateSubmitting:
		fmt.Fprint(os.Stderr, "submitting...\r")
	case poller.StatePolling:
		fmt.Fprintf(os.Stderr, "task %s  %5.1f%%  (attempt %d)\r", s.TaskID, s.Progress, s.Attempt)
	case poller.StateSucceeded:
		fmt.Fprintf(os.Stderr, "task %s  100.0%%  done          \n", s.TaskID)
	}
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type imageRequest struct {
	Prompt  string `json:"prompt"`
	Aspect  string `json:"aspectRatio,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type videoRequest struct {
	Prompt     string `json:"prompt"`
	Mode       string `json:"mode,omitempty"`
	Duration   int    `json:"duration,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Aspect     string `json:"aspectRatio,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c apiClient) submitImage(ctx context.Context, req imageRequest) (string, error) {
	return c.submit(ctx, "/api/ai/images/generate", req)
}

func (c apiClient) submitVideo(ctx context.Context, req videoRequest) (string, error) {
	if req.ImageURL != "" {
		req.Mode = "image-to-video"
	}
	return c.submit(ctx, "/api/ai/videos/generate", req)
}

func (c apiClient) submit(ctx context.Context, path string, payload any) (string, error) {
	data, err := c.call(ctx, http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}
	var out struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("submit returned no task id")
	}
	return out.TaskID, nil
}

func (c apiClient) fetchImageStatus(ctx context.Context, taskID string) (poller.Observation, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/ai/images/task/"+taskID, nil)
	if err != nil {
		return poller.Observation{}, err
	}
	var out struct {
		Status   string   `json:"status"`
		Progress *int     `json:"progress"`
		Results  []string `json:"results"`
		Error    string   `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return poller.Observation{}, fmt.Errorf("decode task status: %w", err)
	}
	return poller.Observation{
		Status:   generation.NormalizeStatus(out.Status),
		Progress: out.Progress,
		Results:  out.Results,
		Error:    out.Error,
	}, nil
}

func (c apiClient) fetchVideoStatus(ctx context.Context, taskID string) (poller.Observation, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/ai/videos/task-status?taskId="+taskID, nil)
	if err != nil {
		return poller.Observation{}, err
	}
	var out struct {
		Status   string `json:"status"`
		Progress *int   `json:"progress"`
		VideoURL string `json:"videoUrl"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return poller.Observation{}, fmt.Errorf("decode task status: %w", err)
	}
	obs := poller.Observation{
		Status:   generation.NormalizeStatus(out.Status),
		Progress: out.Progress,
		Error:    out.Error,
	}
	if out.VideoURL != "" {
		obs.Results = []string{out.VideoURL}
	}
	return obs, nil
}

func (c apiClient) call(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || env.Code == http.StatusUnauthorized {
		return nil, fmt.Errorf("session expired, sign in again: %s", env.Message)
	}
	if env.Code != 1000 {
		return nil, fmt.Errorf("api error %d: %s", env.Code, env.Message)
	}
	return env.Data, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
