// Package indexer keeps the vector index in step with the entry store.
//
// A normal run backfills every entry that has no embedding key yet, for
// example entries whose embedding failed at submission time. A forced run
// re-embeds every entry at its existing key, which is how a new vector
// backend or embedding model is populated.
//
// # Basic Usage
//
//	idx := indexer.New(store, coordinator, logger)
//
//	stats, err := idx.Run(ctx, &indexer.Config{Workers: 4})
//	fmt.Printf("embedded %d entries, %d failed\n", stats.EntriesProcessed, stats.EntriesFailed)
//
// # Concurrent Processing
//
// Entries are processed in batches with a bounded worker pool:
//
//	semaphore := make(chan struct{}, workers)
//	g, gctx := errgroup.WithContext(ctx)
//
// A failure on one entry is recorded in Statistics.ErrorMessages and does
// not stop the run. Only one run may be active per Indexer; a second
// concurrent Run returns ErrAlreadyRunning.
package indexer
