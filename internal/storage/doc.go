// Package storage provides SQLite-based persistence for project listings.
//
// The storage layer manages:
//   - Entries (project listings) and their lifecycle status
//   - Teams, whose names feed the searchable derived text
//   - Upvotes
//   - Embedding vectors for the embedded vector index
//   - The FTS5 lexical index over derived text
//
// # Database Schema
//
// Tables:
//   - entries: listings keyed by a UUID string; rowid backs the FTS table
//   - entries_fts: FTS5 external-content index over entries.derived_text
//   - teams: team names and descriptions
//   - upvotes: one row per (entry, user)
//   - vectors: float32 blobs keyed by (namespace, key)
//
// entries_fts is maintained by triggers, so any write to derived_text is
// searchable as soon as the writing transaction commits.
//
// # Transactions
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.CreateEntry(ctx, entry); err != nil {
//	    return err
//	}
//	if err := tx.SetDerivedText(ctx, entry.ID, text); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// The database runs with a single connection. While a transaction is open,
// all calls must go through the Tx or they will block.
//
// # Status Guards
//
// TransitionStatus and DeletePendingEntry only touch rows in the expected
// status and report whether they did, so concurrent Confirm/Cancel calls on
// one entry cannot both succeed.
//
// # Build Tags
//
// Pure Go build (default):
//
//   - modernc.org/sqlite driver
//   - cosine similarity computed in Go
//
// CGO build (sqlite_vec tag):
//
//   - github.com/mattn/go-sqlite3 driver
//   - vec_distance_cosine evaluated inside SQLite
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec,fts5"
package storage
