package generation

import (
	"context"
	"fmt"
	"sync"
)

// Artifact is the durable record of one persisted task result.
type Artifact struct {
	TaskID      string
	ResultIndex int
	DurableURL  string
	SourceURL   string
	ContentType string
	StorageKey  string
}

// ArtifactIndex answers "has this (task, result) pair been persisted
// already, and where". It is what makes re-polling a completed task
// idempotent: a hit short-circuits the upload and returns the recorded
// durable URL.
type ArtifactIndex interface {
	Lookup(ctx context.Context, taskID string, resultIndex int) (string, bool, error)
	Record(ctx context.Context, artifact Artifact) error
}

// MemoryIndex is a process-local ArtifactIndex. It suffices when task ids
// are unique across restarts; production deployments use the
// database-backed index instead.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]string)}
}

func (m *MemoryIndex) Lookup(ctx context.Context, taskID string, resultIndex int) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	url, ok := m.entries[indexKey(taskID, resultIndex)]
	return url, ok, nil
}

func (m *MemoryIndex) Record(ctx context.Context, artifact Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := indexKey(artifact.TaskID, artifact.ResultIndex)
	if _, exists := m.entries[key]; !exists {
		m.entries[key] = artifact.DurableURL
	}
	return nil
}

func indexKey(taskID string, resultIndex int) string {
	return fmt.Sprintf("%s#%d", taskID, resultIndex)
}

var _ ArtifactIndex = (*MemoryIndex)(nil)
