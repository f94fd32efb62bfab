package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donovan0902/project-hunt/internal/embedder"
	"github.com/donovan0902/project-hunt/internal/storage"
	"github.com/donovan0902/project-hunt/pkg/types"
)

const (
	invoiceText = "Invoice OCR reads scanned supplier invoices and extracts totals"
	gardenText  = "Garden planner schedules watering for balcony tomatoes"
)

func setupStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type countingIndex interface {
	VectorIndex
	Count(ctx context.Context, namespace string) (int, error)
}

// vectorIndexCases runs the same behaviour checks against every embedded backend.
func vectorIndexCases(t *testing.T, newIndex func(t *testing.T) countingIndex) {
	ctx := context.Background()

	t.Run("add then search finds the key", func(t *testing.T) {
		idx := newIndex(t)
		key := uuid.NewString()

		got, err := idx.Add(ctx, DefaultNamespace, key, invoiceText)
		require.NoError(t, err)
		assert.Equal(t, key, got)

		_, err = idx.Add(ctx, DefaultNamespace, uuid.NewString(), gardenText)
		require.NoError(t, err)

		hits, err := idx.Search(ctx, DefaultNamespace, invoiceText, 10, 0.6)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, key, hits[0].Key)
		assert.InDelta(t, 1.0, hits[0].Score, 0.001)
	})

	t.Run("add is an upsert", func(t *testing.T) {
		idx := newIndex(t)
		key := uuid.NewString()

		_, err := idx.Add(ctx, DefaultNamespace, key, invoiceText)
		require.NoError(t, err)
		_, err = idx.Add(ctx, DefaultNamespace, key, gardenText)
		require.NoError(t, err)

		n, err := idx.Count(ctx, DefaultNamespace)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		hits, err := idx.Search(ctx, DefaultNamespace, gardenText, 10, 0.6)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, key, hits[0].Key)

		hits, err = idx.Search(ctx, DefaultNamespace, invoiceText, 10, 0.6)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("delete removes and tolerates absent keys", func(t *testing.T) {
		idx := newIndex(t)
		key := uuid.NewString()

		_, err := idx.Add(ctx, DefaultNamespace, key, invoiceText)
		require.NoError(t, err)
		require.NoError(t, idx.Delete(ctx, DefaultNamespace, key))
		require.NoError(t, idx.Delete(ctx, DefaultNamespace, key))
		require.NoError(t, idx.Delete(ctx, "other", key))

		hits, err := idx.Search(ctx, DefaultNamespace, invoiceText, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Add(ctx, "a", "k1", invoiceText)
		require.NoError(t, err)

		hits, err := idx.Search(ctx, "b", invoiceText, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("limit larger than the namespace", func(t *testing.T) {
		idx := newIndex(t)
		for i := 0; i < 3; i++ {
			_, err := idx.Add(ctx, DefaultNamespace, uuid.NewString(), invoiceText)
			require.NoError(t, err)
		}
		hits, err := idx.Search(ctx, DefaultNamespace, invoiceText, 50, 0.6)
		require.NoError(t, err)
		assert.Len(t, hits, 3)
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Add(ctx, "", "k", invoiceText)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = idx.Add(ctx, DefaultNamespace, "", invoiceText)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = idx.Add(ctx, DefaultNamespace, "k", "   ")
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, idx.Delete(ctx, DefaultNamespace, ""), ErrInvalidArgument)

		hits, err := idx.Search(ctx, DefaultNamespace, invoiceText, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestSQLiteVectorIndex(t *testing.T) {
	vectorIndexCases(t, func(t *testing.T) countingIndex {
		return NewSQLiteVectorIndex(setupStore(t), embedder.NewLocalProvider(0))
	})
}

func TestChromemVectorIndex(t *testing.T) {
	vectorIndexCases(t, func(t *testing.T) countingIndex {
		idx, err := NewChromemVectorIndex("", false, embedder.NewLocalProvider(0))
		require.NoError(t, err)
		return idx
	})
}

func TestChromemVectorIndex_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := NewChromemVectorIndex(dir, false, embedder.NewLocalProvider(0))
	require.NoError(t, err)
	_, err = idx.Add(ctx, DefaultNamespace, "k1", invoiceText)
	require.NoError(t, err)

	reopened, err := NewChromemVectorIndex(dir, false, embedder.NewLocalProvider(0))
	require.NoError(t, err)
	hits, err := reopened.Search(ctx, DefaultNamespace, invoiceText, 5, 0.6)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "k1", hits[0].Key)
}

func TestFTSLexicalIndex(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	for _, e := range []struct{ name, text string }{
		{"invoice", invoiceText},
		{"garden", gardenText},
	} {
		entry := &types.Entry{
			ID:        e.name,
			OwnerID:   "alice",
			Name:      e.name,
			Summary:   e.text,
			Status:    types.StatusActive,
			Readiness: types.ReadinessInProgress,
		}
		require.NoError(t, store.CreateEntry(ctx, entry))
		require.NoError(t, store.SetDerivedText(ctx, entry.ID, e.text))
	}

	idx := NewFTSLexicalIndex(store)

	ids, err := idx.Search(ctx, "supplier invoices", 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice"}, ids)

	ids, err = idx.Search(ctx, "tomatoes OR invoices", 8)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"invoice", "garden"}, ids)

	ids, err = idx.Search(ctx, "***", 8)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPointID_Stable(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, pointID(id).GetUuid())

	a := pointID("not-a-uuid").GetUuid()
	b := pointID("not-a-uuid").GetUuid()
	assert.Equal(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

type stubVectorIndex struct {
	err   error
	block bool
}

func (s *stubVectorIndex) Add(ctx context.Context, namespace, key, text string) (string, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return key, s.err
}

func (s *stubVectorIndex) Search(ctx context.Context, namespace, text string, limit int, minScore float32) ([]VectorHit, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return []VectorHit{{Key: "k", Score: 0.9}}, nil
}

func (s *stubVectorIndex) Delete(ctx context.Context, namespace, key string) error {
	return s.err
}

type stubLexicalIndex struct{ err error }

func (s stubLexicalIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	return []string{"a"}, s.err
}

func TestInstrumentedVectorIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("passes results through", func(t *testing.T) {
		idx := NewInstrumentedVectorIndex(&stubVectorIndex{}, 0)
		assert.Equal(t, DefaultTimeout, idx.timeout)

		key, err := idx.Add(ctx, DefaultNamespace, "k", "text")
		require.NoError(t, err)
		assert.Equal(t, "k", key)

		hits, err := idx.Search(ctx, DefaultNamespace, "text", 5, 0.3)
		require.NoError(t, err)
		assert.Equal(t, []VectorHit{{Key: "k", Score: 0.9}}, hits)
	})

	t.Run("errors become upstream failures", func(t *testing.T) {
		cause := errors.New("connection refused")
		idx := NewInstrumentedVectorIndex(&stubVectorIndex{err: cause}, time.Second)

		err := idx.Delete(ctx, DefaultNamespace, "k")
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrUpstreamFailure)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("timeout becomes an upstream failure", func(t *testing.T) {
		idx := NewInstrumentedVectorIndex(&stubVectorIndex{block: true}, 20*time.Millisecond)

		start := time.Now()
		_, err := idx.Search(ctx, DefaultNamespace, "text", 5, 0.3)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrUpstreamFailure)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestInstrumentedLexicalIndex(t *testing.T) {
	ctx := context.Background()

	ids, err := NewInstrumentedLexicalIndex(stubLexicalIndex{}, time.Second).Search(ctx, "q", 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	_, err = NewInstrumentedLexicalIndex(stubLexicalIndex{err: errors.New("fts")}, time.Second).Search(ctx, "q", 8)
	assert.ErrorIs(t, err, types.ErrUpstreamFailure)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	emb := embedder.NewLocalProvider(0)

	idx, err := New(ctx, Config{}, store, emb)
	require.NoError(t, err)
	assert.IsType(t, &InstrumentedVectorIndex{}, idx.Vector)
	assert.NoError(t, idx.Close())

	idx, err = New(ctx, Config{Backend: BackendChromem}, store, emb)
	require.NoError(t, err)
	assert.NoError(t, idx.Close())

	_, err = New(ctx, Config{Backend: "pinecone"}, store, emb)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
