package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"server/internal/generation"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/providers/evolink"
)

// stubSQL dispatches on the query text so each test wires only the
// statements its handler runs.
type stubSQL struct {
	rows    map[string]func(args ...any) fakeRow
	queries map[string]func(args ...any) (pgx.Rows, error)
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if fn, ok := s.rows[query]; ok {
		return fn(args...)
	}
	return fakeRow{scan: func(...any) error { return errors.New("unexpected query") }}
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if fn, ok := s.queries[query]; ok {
		return fn(args...)
	}
	return nil, errors.New("unexpected query")
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

func scanInt(value int) fakeRow {
	return fakeRow{scan: func(dest ...any) error {
		*(dest[0].(*int)) = value
		return nil
	}}
}

func noRows() fakeRow {
	return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
}

// stubVendor records submissions and serves canned tasks.
type stubVendor struct {
	mu          sync.Mutex
	imageCalls  []evolink.ImageTaskRequest
	videoCalls  []evolink.VideoTaskRequest
	taskID      string
	submitErr   error
	tasks       map[string]*evolink.Task
	getErr      error
	statusCalls int
}

func (v *stubVendor) CreateImageTask(ctx context.Context, req evolink.ImageTaskRequest) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.imageCalls = append(v.imageCalls, req)
	return v.taskID, v.submitErr
}

func (v *stubVendor) CreateVideoTask(ctx context.Context, req evolink.VideoTaskRequest) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.videoCalls = append(v.videoCalls, req)
	return v.taskID, v.submitErr
}

func (v *stubVendor) GetTask(ctx context.Context, taskID string) (*evolink.Task, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statusCalls++
	if v.getErr != nil {
		return nil, v.getErr
	}
	task, ok := v.tasks[taskID]
	if !ok {
		return nil, &evolink.APIError{StatusCode: http.StatusNotFound, Message: "task not found"}
	}
	return task, nil
}

func (v *stubVendor) submissions() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.imageCalls) + len(v.videoCalls)
}

// stubPersister rewrites each transient url to a durable one and counts
// invocations.
type stubPersister struct {
	mu    sync.Mutex
	calls int
}

func (p *stubPersister) PersistResults(ctx context.Context, taskID string, kind generation.Kind, results []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	out := make([]string, len(results))
	for i := range results {
		out[i] = "https://cdn.example.com/" + taskID
	}
	return out
}

func newTestApp(sql infra.SQLExecutor, vendor GenerationVendor, persister ResultPersister) *App {
	return &App{
		Config: &infra.Config{
			JWTSecret:          "test-secret",
			ImageModel:         "nano-banana-2-lite",
			VideoModel:         "veo3.1-fast",
			InitialUserCredits: 100,
			ImageCreditCost:    5,
			VideoCreditCost:    20,
		},
		Logger:    zerolog.Nop(),
		SQL:       sql,
		Vendor:    vendor,
		Persister: persister,
	}
}

func doRequest(t *testing.T, handler http.HandlerFunc, req *http.Request, userID string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if userID != "" {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, rec.Body.String())
	}
	return rec, env
}

func dataMap(t *testing.T, env envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("envelope data is %T, want object", env.Data)
	}
	return m
}
