package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UploadRequest asks a Store to fetch the bytes behind SourceURL and place
// them durably at Key.
type UploadRequest struct {
	SourceURL   string
	Key         string
	ContentType string
	Disposition string
}

// UploadResult reports where the durable copy lives.
type UploadResult struct {
	URL   string
	Key   string
	Bytes int64
}

// Store is the object-storage capability: store bytes at a key and hand
// back a stable, application-controlled URL.
type Store interface {
	DownloadAndUpload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// download fetches the source URL. Shared by the concrete stores.
func download(ctx context.Context, client *http.Client, sourceURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("storage: invalid source url %q", sourceURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("storage: build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: download source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("storage: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read source body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("storage: source returned no data")
	}
	return data, nil
}

func defaultHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 120 * time.Second}
}
