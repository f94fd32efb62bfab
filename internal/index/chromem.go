package index

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/donovan0902/project-hunt/internal/embedder"
)

// ChromemVectorIndex is an embedded vector index backed by chromem-go. Each
// namespace maps to one collection.
type ChromemVectorIndex struct {
	db       *chromem.DB
	embedder embedder.Embedder

	mu sync.Mutex // guards collection creation
}

// NewChromemVectorIndex opens a chromem database. An empty path keeps
// everything in memory; otherwise the database is persisted under path.
func NewChromemVectorIndex(path string, compress bool, emb embedder.Embedder) (*ChromemVectorIndex, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem database at %s: %w", path, err)
		}
	}
	return &ChromemVectorIndex{db: db, embedder: emb}, nil
}

// embeddingFunc adapts the embedder to chromem's callback.
func (x *ChromemVectorIndex) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		emb, err := x.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		return emb.Vector, nil
	}
}

func (x *ChromemVectorIndex) collection(namespace string) (*chromem.Collection, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	c, err := x.db.GetOrCreateCollection(namespace, nil, x.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", namespace, err)
	}
	return c, nil
}

func (x *ChromemVectorIndex) Add(ctx context.Context, namespace, key, text string) (string, error) {
	if err := validateKey(namespace, key); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", ErrInvalidArgument)
	}

	c, err := x.collection(namespace)
	if err != nil {
		return "", err
	}

	emb, err := x.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("embed %s: %w", key, err)
	}

	doc := chromem.Document{
		ID:        key,
		Content:   text,
		Embedding: emb.Vector,
		Metadata: map[string]string{
			"provider": emb.Provider,
			"model":    emb.Model,
		},
	}
	// Adding an existing ID replaces the document
	if err := c.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return "", fmt.Errorf("add document %s: %w", key, err)
	}
	return key, nil
}

func (x *ChromemVectorIndex) Search(ctx context.Context, namespace, text string, limit int, minScore float32) ([]VectorHit, error) {
	if limit <= 0 || strings.TrimSpace(text) == "" {
		return []VectorHit{}, nil
	}

	c := x.db.GetCollection(namespace, x.embeddingFunc())
	if c == nil {
		return []VectorHit{}, nil
	}

	// chromem rejects a result count above the collection size
	n := c.Count()
	if n == 0 {
		return []VectorHit{}, nil
	}
	if limit > n {
		limit = n
	}

	results, err := c.Query(ctx, text, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", namespace, err)
	}

	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		if r.Similarity < minScore {
			continue
		}
		hits = append(hits, VectorHit{Key: r.ID, Score: r.Similarity})
	}
	return hits, nil
}

func (x *ChromemVectorIndex) Delete(ctx context.Context, namespace, key string) error {
	if err := validateKey(namespace, key); err != nil {
		return err
	}

	c := x.db.GetCollection(namespace, x.embeddingFunc())
	if c == nil {
		return nil
	}
	if _, err := c.GetByID(ctx, key); err != nil {
		// not present
		return nil
	}
	if err := c.Delete(ctx, nil, nil, key); err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

// Count returns the number of documents in namespace.
func (x *ChromemVectorIndex) Count(_ context.Context, namespace string) (int, error) {
	c := x.db.GetCollection(namespace, x.embeddingFunc())
	if c == nil {
		return 0, nil
	}
	return c.Count(), nil
}
