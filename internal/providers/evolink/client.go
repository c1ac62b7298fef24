package evolink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("evolink: api key is required")

// Task statuses reported by the vendor. "success" appears on some model
// families as an alias of "completed"; anything else is passed through so
// the caller can decide how to treat it.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Options configures the Evolink generation API client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Evolink task API. A generation
// request creates a task; the task is then polled by id until it reaches a
// terminal state.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// ImageTaskRequest captures the inputs for an image generation task.
type ImageTaskRequest struct {
	Model   string
	Prompt  string
	Size    string
	Quality string
}

// VideoTaskRequest captures the inputs for a video generation task.
type VideoTaskRequest struct {
	Model          string
	Prompt         string
	Duration       int
	Resolution     string
	AspectRatio    string
	ImageURLs      []string
	NegativePrompt string
	EnableAudio    bool
}

// Task is the vendor's view of an in-flight or finished generation job.
// Results are only populated once Status is completed, and the URLs they
// carry are transient.
type Task struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Progress *int     `json:"progress"`
	Results  []string `json:"results"`
	Error    string   `json:"error"`
	Message  string   `json:"message"`
}

// APIError is a non-2xx response from the vendor. StatusCode is the
// upstream HTTP status so handlers can mirror it.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("evolink: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("evolink: status %d", e.StatusCode)
}

type imageGenerationPayload struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type videoGenerationPayload struct {
	Model          string   `json:"model"`
	Prompt         string   `json:"prompt"`
	Duration       int      `json:"duration"`
	Resolution     string   `json:"resolution"`
	AspectRatio    string   `json:"aspect_ratio"`
	EnableAudio    bool     `json:"enable_audio"`
	ImageURLs      []string `json:"image_urls,omitempty"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
}

type createTaskResponse struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const maxReferenceImages = 3

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.evolink.ai"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateImageTask submits an image generation job and returns its task id.
func (c *Client) CreateImageTask(ctx context.Context, req ImageTaskRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("evolink: prompt is required")
	}
	payload := imageGenerationPayload{
		Model:   req.Model,
		Prompt:  prompt,
		Size:    strings.TrimSpace(req.Size),
		Quality: strings.TrimSpace(req.Quality),
	}
	return c.createTask(ctx, "/v1/images/generations", payload)
}

// CreateVideoTask submits a video generation job and returns its task id.
// At most three reference images are forwarded for image-to-video.
func (c *Client) CreateVideoTask(ctx context.Context, req VideoTaskRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("evolink: prompt is required")
	}
	payload := videoGenerationPayload{
		Model:          req.Model,
		Prompt:         prompt,
		Duration:       req.Duration,
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
		EnableAudio:    req.EnableAudio,
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
	}
	if len(req.ImageURLs) > 0 {
		refs := req.ImageURLs
		if len(refs) > maxReferenceImages {
			refs = refs[:maxReferenceImages]
		}
		payload.ImageURLs = refs
	}
	return c.createTask(ctx, "/v1/videos/generations", payload)
}

// GetTask queries the current state of a task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("evolink: task id is required")
	}
	raw, err := c.do(ctx, http.MethodGet, "/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("evolink: decode task: %w", err)
	}
	if task.ID == "" {
		task.ID = taskID
	}
	c.logger.Debug().
		Str("task_id", task.ID).
		Str("status", task.Status).
		Int("results", len(task.Results)).
		Msg("evolink: task state")
	return &task, nil
}

func (c *Client) createTask(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("evolink: encode request: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	var decoded createTaskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("evolink: decode response: %w", err)
	}
	taskID := decoded.ID
	if taskID == "" {
		taskID = decoded.TaskID
	}
	if taskID == "" {
		return "", errors.New("evolink: response missing task id")
	}
	c.logger.Debug().Str("task_id", taskID).Str("path", path).Msg("evolink: task created")
	return taskID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("evolink: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evolink: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("evolink: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil {
		code := envelope.Error.Code
		message := envelope.Error.Message
		if message == "" {
			code = envelope.Code
			message = envelope.Message
		}
		if message != "" {
			return &APIError{StatusCode: status, Code: code, Message: message}
		}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(raw))}
}
