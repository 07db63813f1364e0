package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchFetcher restores many archived uploads in parallel.
type BatchFetcher struct {
	archive     *Archive
	concurrency int
	dir         string
}

// BatchResult contains the outcome of a batch fetch.
type BatchResult struct {
	LocalPaths map[string]string
	Errors     map[string]error
	// Skipped counts objects already present in the target directory.
	Skipped int
	Fetched int
}

// NewBatchFetcher creates a fetcher writing into dir.
// concurrency: maximum number of parallel downloads
func NewBatchFetcher(archive *Archive, concurrency int, dir string) *BatchFetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &BatchFetcher{archive: archive, concurrency: concurrency, dir: dir}
}

// Fetch restores every object. Files already present locally are not
// downloaded again. Per-object failures are reported in the result.
func (b *BatchFetcher) Fetch(ctx context.Context, objectPaths []string) (*BatchResult, error) {
	result := &BatchResult{
		LocalPaths: make(map[string]string),
		Errors:     make(map[string]error),
	}
	if len(objectPaths) == 0 {
		return result, nil
	}
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, fmt.Errorf("storage: failed to create fetch directory: %w", err)
	}

	sem := semaphore.NewWeighted(int64(b.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range objectPaths {
		local := b.localPath(p)
		if _, err := os.Stat(local); err == nil {
			result.LocalPaths[p] = local
			result.Skipped++
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[p] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(objectPath, local string) {
			defer sem.Release(1)
			defer wg.Done()

			err := b.archive.Fetch(ctx, objectPath, local)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[objectPath] = err
				return
			}
			result.LocalPaths[objectPath] = local
			result.Fetched++
		}(p, local)
	}

	wg.Wait()
	return result, nil
}

// localPath flattens the object key into one file name and drops the
// compression suffix.
func (b *BatchFetcher) localPath(objectPath string) string {
	name := strings.TrimSuffix(path.Base(objectPath), SuffixSnappy)
	return filepath.Join(b.dir, name)
}
