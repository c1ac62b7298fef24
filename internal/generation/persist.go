package generation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"server/internal/infra"
	"server/internal/storage"
)

// Persister copies the transient result URLs of a completed task into the
// application's own object store. Durability is best effort: a failed
// upload falls back to the original vendor URL for that result and is only
// logged, never surfaced as a request error.
type Persister struct {
	store  storage.Store
	index  ArtifactIndex
	logger infra.Logger
	flight singleflight.Group
	now    func() time.Time
}

func NewPersister(store storage.Store, index ArtifactIndex, logger infra.Logger) *Persister {
	if index == nil {
		index = NewMemoryIndex()
	}
	return &Persister{
		store:  store,
		index:  index,
		logger: logger,
		now:    time.Now,
	}
}

// PersistResults returns exactly len(results) URLs in the original order,
// each either the durable copy or the source URL when persistence was not
// possible. Results are uploaded independently and concurrently; a result
// already recorded in the index is not uploaded again. Concurrent calls
// for the same task id coalesce into one flight.
func (p *Persister) PersistResults(ctx context.Context, taskID string, kind Kind, results []string) []string {
	if len(results) == 0 {
		return nil
	}
	v, err, _ := p.flight.Do(flightKey(taskID, kind), func() (any, error) {
		return p.persistAll(ctx, taskID, kind, results), nil
	})
	if err != nil || v == nil {
		// The flight function never errors; keep the vendor URLs if it
		// somehow produced nothing.
		return results
	}
	urls, ok := v.([]string)
	if !ok || len(urls) != len(results) {
		return results
	}
	return urls
}

func (p *Persister) persistAll(ctx context.Context, taskID string, kind Kind, results []string) []string {
	urls := make([]string, len(results))
	g, gctx := errgroup.WithContext(ctx)
	for i, sourceURL := range results {
		g.Go(func() error {
			urls[i] = p.persistOne(gctx, taskID, kind, i, sourceURL)
			return nil
		})
	}
	_ = g.Wait()
	return urls
}

func (p *Persister) persistOne(ctx context.Context, taskID string, kind Kind, index int, sourceURL string) string {
	if durable, ok, err := p.index.Lookup(ctx, taskID, index); err == nil && ok {
		return durable
	} else if err != nil {
		p.logger.Warn().Err(err).
			Str("task_id", taskID).
			Int("result_index", index).
			Msg("persist: artifact index lookup failed")
	}

	key := BuildStorageKey(kind, sourceURL, p.now())
	uploaded, err := p.store.DownloadAndUpload(ctx, storage.UploadRequest{
		SourceURL:   sourceURL,
		Key:         key.Key,
		ContentType: key.ContentType,
		Disposition: "inline",
	})
	if err != nil {
		p.logger.Warn().Err(err).
			Str("task_id", taskID).
			Int("result_index", index).
			Str("source_url", sourceURL).
			Msg("persist: upload failed, returning transient url")
		return sourceURL
	}

	if err := p.index.Record(ctx, Artifact{
		TaskID:      taskID,
		ResultIndex: index,
		DurableURL:  uploaded.URL,
		SourceURL:   sourceURL,
		ContentType: key.ContentType,
		StorageKey:  uploaded.Key,
	}); err != nil {
		p.logger.Warn().Err(err).
			Str("task_id", taskID).
			Int("result_index", index).
			Msg("persist: artifact index record failed")
	}
	p.logger.Info().
		Str("task_id", taskID).
		Int("result_index", index).
		Str("key", uploaded.Key).
		Msg("persist: result stored")
	return uploaded.URL
}

func flightKey(taskID string, kind Kind) string {
	return fmt.Sprintf("%s/%s", kind, taskID)
}
