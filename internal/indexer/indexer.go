package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/donovan0902/project-hunt/internal/storage"
	"github.com/donovan0902/project-hunt/pkg/types"
)

// ErrAlreadyRunning is returned when a reindex run is already in progress.
var ErrAlreadyRunning = errors.New("reindex already in progress")

// Embedder attaches vectors to entries. The submission coordinator
// implements it.
type Embedder interface {
	// Backfill embeds an entry only if it has no key yet.
	Backfill(ctx context.Context, entryID string) (string, error)
	// Reembed overwrites the entry's vector unconditionally.
	Reembed(ctx context.Context, entryID string) (string, error)
}

// Config contains configuration for a reindex run
type Config struct {
	Workers   int  // Number of concurrent workers (default: runtime.NumCPU())
	BatchSize int  // Entries loaded per page when backfilling (default: 100)
	Force     bool // Re-embed every entry instead of only those missing a key
}

// Statistics contains statistics about a reindex run
type Statistics struct {
	EntriesProcessed int
	EntriesSkipped   int
	EntriesFailed    int
	Duration         time.Duration
	ErrorMessages    []string
}

// Indexer walks the entry store and makes sure every entry has a vector.
type Indexer struct {
	storage  storage.Storage
	embedder Embedder
	logger   *zap.Logger
	lock     IndexLock
}

// New creates a new Indexer instance
func New(store storage.Storage, emb Embedder, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{storage: store, embedder: emb, logger: logger}
}

// Run backfills missing embeddings, or re-embeds everything with
// config.Force. Individual failures are counted and reported in the
// statistics; the run continues with the remaining entries.
func (idx *Indexer) Run(ctx context.Context, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrAlreadyRunning
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	ids, err := idx.candidates(ctx, config.Force)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := idx.processBatch(ctx, ids[i:end], workers, config.Force, stats); err != nil {
			return nil, err
		}
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("reindex finished",
		zap.Bool("force", config.Force),
		zap.Int("processed", stats.EntriesProcessed),
		zap.Int("skipped", stats.EntriesSkipped),
		zap.Int("failed", stats.EntriesFailed),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// candidates returns the ids to process
func (idx *Indexer) candidates(ctx context.Context, force bool) ([]string, error) {
	var (
		entries []*types.Entry
		err     error
	)
	if force {
		entries, err = idx.storage.ListEntries(ctx, storage.ListFilter{Sort: storage.SortNewest})
	} else {
		entries, err = idx.storage.ListEntriesMissingEmbedding(ctx, 0)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// processBatch embeds a batch of entries with at most workers in flight
func (idx *Indexer) processBatch(ctx context.Context, ids []string, workers int, force bool, stats *Statistics) error {
	semaphore := make(chan struct{}, workers)

	var (
		processed int32
		skipped   int32
		failed    int32
		mu        sync.Mutex // Protect stats.ErrorMessages
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		if !acquire(gctx, semaphore) {
			break
		}

		g.Go(func() error {
			defer func() { <-semaphore }()

			var err error
			if force {
				_, err = idx.embedder.Reembed(gctx, id)
			} else {
				_, err = idx.embedder.Backfill(gctx, id)
			}

			switch {
			case err == nil:
				atomic.AddInt32(&processed, 1)
			case errors.Is(err, types.ErrNotFound):
				// removed since it was listed
				atomic.AddInt32(&skipped, 1)
			default:
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", id, err))
				mu.Unlock()
				idx.logger.Warn("embedding failed", zap.String("entry_id", id), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stats.EntriesProcessed += int(processed)
	stats.EntriesSkipped += int(skipped)
	stats.EntriesFailed += int(failed)
	return nil
}

// acquire takes a worker slot, returning false if ctx is done first
func acquire(ctx context.Context, semaphore chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case semaphore <- struct{}{}:
		return true
	}
}
