// Package index provides the vector and lexical index capabilities used by
// submission dedup and hybrid search.
//
// Three vector backends are available: the store's own vectors table
// (SQLiteVectorIndex), an embedded chromem-go database (ChromemVectorIndex)
// and a Qdrant server (QdrantVectorIndex). Keys are upserted, so re-adding a
// key replaces its vector. The lexical index is the store's FTS5 table over
// each entry's derived text.
//
// New wraps both indexes so every call runs under a deadline and reports
// failures as types.ErrUpstreamFailure:
//
//	idx, err := index.New(ctx, cfg, store, emb)
//	hits, err := idx.Vector.Search(ctx, index.DefaultNamespace, text, 10, 0.6)
package index
