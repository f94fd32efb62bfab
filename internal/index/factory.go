package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/donovan0902/project-hunt/internal/embedder"
	"github.com/donovan0902/project-hunt/internal/storage"
)

// Config selects and configures the vector index backend.
type Config struct {
	Backend   string        `koanf:"backend"`
	Namespace string        `koanf:"namespace"`
	Timeout   time.Duration `koanf:"timeout"`

	ChromemPath     string `koanf:"chromem_path"`
	ChromemCompress bool   `koanf:"chromem_compress"`

	Qdrant QdrantConfig `koanf:"qdrant"`
}

// Indexes bundles the instrumented indexes handed to the coordinator.
type Indexes struct {
	Vector  VectorIndex
	Lexical LexicalIndex

	closeFn func() error
}

// Close releases backend connections.
func (i *Indexes) Close() error {
	if i.closeFn == nil {
		return nil
	}
	return i.closeFn()
}

// New builds the configured vector index and the FTS lexical index, both
// wrapped with the per-call timeout.
func New(ctx context.Context, cfg Config, store storage.Storage, emb embedder.Embedder) (*Indexes, error) {
	var (
		vec     VectorIndex
		closeFn func() error
	)

	switch strings.ToLower(cfg.Backend) {
	case BackendSQLite, "":
		vec = NewSQLiteVectorIndex(store, emb)
	case BackendChromem:
		c, err := NewChromemVectorIndex(cfg.ChromemPath, cfg.ChromemCompress, emb)
		if err != nil {
			return nil, err
		}
		vec = c
	case BackendQdrant:
		q, err := NewQdrantVectorIndex(ctx, cfg.Qdrant, emb)
		if err != nil {
			return nil, err
		}
		vec = q
		closeFn = q.Close
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}

	return &Indexes{
		Vector:  NewInstrumentedVectorIndex(vec, cfg.Timeout),
		Lexical: NewInstrumentedLexicalIndex(NewFTSLexicalIndex(store), cfg.Timeout),
		closeFn: closeFn,
	}, nil
}
