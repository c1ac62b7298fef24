package repo

import (
	"context"
	"fmt"

	"server/internal/generation"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// ArtifactRepositoryPG is the database-backed generation.ArtifactIndex.
// The table's (task_id, result_index) unique key makes Record idempotent
// across processes and restarts.
type ArtifactRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewArtifactRepositoryPG(sql infra.SQLExecutor) *ArtifactRepositoryPG {
	return &ArtifactRepositoryPG{sql: sql}
}

func (r *ArtifactRepositoryPG) Lookup(ctx context.Context, taskID string, resultIndex int) (string, bool, error) {
	var durableURL string
	err := r.sql.QueryRow(ctx, sqlinline.QSelectPersistedArtifact, taskID, resultIndex).Scan(&durableURL)
	if infra.IsNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("repo: lookup artifact: %w", err)
	}
	return durableURL, true, nil
}

func (r *ArtifactRepositoryPG) Record(ctx context.Context, artifact generation.Artifact) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertPersistedArtifact,
		artifact.TaskID, artifact.ResultIndex, artifact.DurableURL,
		artifact.SourceURL, artifact.ContentType, artifact.StorageKey,
	)
	if err != nil {
		return fmt.Errorf("repo: record artifact: %w", err)
	}
	return nil
}

var _ generation.ArtifactIndex = (*ArtifactRepositoryPG)(nil)
