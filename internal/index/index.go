package index

import (
	"context"
	"errors"
	"fmt"
)

// DefaultNamespace is the namespace project vectors are stored under.
const DefaultNamespace = "projects"

// Backend names
const (
	BackendSQLite  = "sqlite"
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

var (
	// ErrInvalidArgument is returned for empty namespaces, keys or texts.
	ErrInvalidArgument = errors.New("invalid index argument")
	// ErrUnknownBackend is returned by New for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown vector index backend")
)

// VectorHit is one result of a vector search.
type VectorHit struct {
	Key   string
	Score float32 // Cosine similarity, higher is closer
}

// VectorIndex stores one embedding per key inside a namespace. Add is an
// upsert: writing an existing key replaces its vector.
type VectorIndex interface {
	// Add embeds text and stores it under key, returning the key.
	Add(ctx context.Context, namespace, key, text string) (string, error)

	// Search returns up to limit keys whose similarity to text is at least
	// minScore, ordered by descending score.
	Search(ctx context.Context, namespace, text string, limit int, minScore float32) ([]VectorHit, error)

	// Delete removes key from namespace. Deleting an absent key is not an error.
	Delete(ctx context.Context, namespace, key string) error
}

// LexicalIndex answers keyword queries over entry text.
type LexicalIndex interface {
	// Search returns up to limit entry ids ordered by relevance.
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

func validateKey(namespace, key string) error {
	if namespace == "" {
		return fmt.Errorf("%w: namespace is required", ErrInvalidArgument)
	}
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidArgument)
	}
	return nil
}
