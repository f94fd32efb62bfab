package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/donovan0902/project-hunt/internal/embedder"
	"github.com/donovan0902/project-hunt/internal/storage"
)

// SQLiteVectorIndex keeps vectors in the store's vectors table. Similarity is
// computed by sqlite-vec when the binary is built with it, in Go otherwise.
type SQLiteVectorIndex struct {
	store    storage.Storage
	embedder embedder.Embedder
}

// NewSQLiteVectorIndex creates a vector index backed by store.
func NewSQLiteVectorIndex(store storage.Storage, emb embedder.Embedder) *SQLiteVectorIndex {
	return &SQLiteVectorIndex{store: store, embedder: emb}
}

func (x *SQLiteVectorIndex) Add(ctx context.Context, namespace, key, text string) (string, error) {
	if err := validateKey(namespace, key); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", ErrInvalidArgument)
	}

	emb, err := x.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("embed %s: %w", key, err)
	}

	err = x.store.UpsertVector(ctx, &storage.Vector{
		Namespace: namespace,
		Key:       key,
		Vector:    emb.Vector,
		Provider:  emb.Provider,
		Model:     emb.Model,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (x *SQLiteVectorIndex) Search(ctx context.Context, namespace, text string, limit int, minScore float32) ([]VectorHit, error) {
	if limit <= 0 || strings.TrimSpace(text) == "" {
		return []VectorHit{}, nil
	}

	emb, err := x.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := x.store.SearchVector(ctx, namespace, emb.Vector, limit, float64(minScore))
	if err != nil {
		return nil, err
	}

	hits := make([]VectorHit, len(results))
	for i, r := range results {
		hits[i] = VectorHit{Key: r.Key, Score: float32(r.SimilarityScore)}
	}
	return hits, nil
}

func (x *SQLiteVectorIndex) Delete(ctx context.Context, namespace, key string) error {
	if err := validateKey(namespace, key); err != nil {
		return err
	}
	return x.store.DeleteVector(ctx, namespace, key)
}

// Count returns the number of vectors in namespace.
func (x *SQLiteVectorIndex) Count(ctx context.Context, namespace string) (int, error) {
	return x.store.CountVectors(ctx, namespace)
}

// FTSLexicalIndex searches the store's FTS5 table, which follows each
// entry's derived text through triggers.
type FTSLexicalIndex struct {
	store storage.Storage
}

// NewFTSLexicalIndex creates a lexical index backed by store.
func NewFTSLexicalIndex(store storage.Storage) *FTSLexicalIndex {
	return &FTSLexicalIndex{store: store}
}

func (x *FTSLexicalIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	results, err := x.store.SearchText(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.EntryID
	}
	return ids, nil
}
