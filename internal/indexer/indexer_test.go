package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donovan0902/project-hunt/internal/storage"
	"github.com/donovan0902/project-hunt/pkg/types"
)

// fakeEmbedder records which entries it was asked to embed and marks them
// in the store like the coordinator does.
type fakeEmbedder struct {
	store    storage.Storage
	fail     map[string]bool
	block    chan struct{}
	mu       sync.Mutex
	backfill []string
	reembed  []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeEmbedder) do(ctx context.Context, id string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}
	if f.fail[id] {
		return "", types.WrapError(types.KindUpstream, "embed", errors.New("provider down"))
	}
	if _, err := f.store.GetEntry(ctx, id); err != nil {
		return "", types.WrapError(types.KindNotFound, "embed", err)
	}
	if err := f.store.SetEmbeddingKey(ctx, id, id); err != nil {
		return "", err
	}
	return id, nil
}

func (f *fakeEmbedder) Backfill(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	f.backfill = append(f.backfill, id)
	f.mu.Unlock()
	return f.do(ctx, id)
}

func (f *fakeEmbedder) Reembed(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	f.reembed = append(f.reembed, id)
	f.mu.Unlock()
	return f.do(ctx, id)
}

func setupStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createEntries(t *testing.T, store storage.Storage, n int, withKey bool) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		e := &types.Entry{
			ID:        uuid.NewString(),
			OwnerID:   "alice",
			Name:      "entry",
			Summary:   "summary",
			Status:    types.StatusActive,
			Readiness: types.ReadinessInProgress,
		}
		if withKey {
			e.EmbeddingKey = e.ID
		}
		require.NoError(t, store.CreateEntry(context.Background(), e))
		ids[i] = e.ID
	}
	return ids
}

func TestRun_BackfillsMissingOnly(t *testing.T) {
	store := setupStore(t)
	missing := createEntries(t, store, 5, false)
	createEntries(t, store, 3, true)

	emb := &fakeEmbedder{store: store}
	stats, err := New(store, emb, nil).Run(context.Background(), &Config{Workers: 2, BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.EntriesProcessed)
	assert.Equal(t, 0, stats.EntriesFailed)
	assert.ElementsMatch(t, missing, emb.backfill)
	assert.Empty(t, emb.reembed)

	left, err := store.ListEntriesMissingEmbedding(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, left)

	// second run has nothing to do
	stats, err = New(store, emb, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EntriesProcessed)
}

func TestRun_ForceReembedsEverything(t *testing.T) {
	store := setupStore(t)
	ids := append(createEntries(t, store, 2, false), createEntries(t, store, 3, true)...)

	emb := &fakeEmbedder{store: store}
	stats, err := New(store, emb, nil).Run(context.Background(), &Config{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.EntriesProcessed)
	assert.ElementsMatch(t, ids, emb.reembed)
	assert.Empty(t, emb.backfill)
}

func TestRun_FailuresAreCounted(t *testing.T) {
	store := setupStore(t)
	ids := createEntries(t, store, 4, false)

	emb := &fakeEmbedder{store: store, fail: map[string]bool{ids[1]: true}}
	stats, err := New(store, emb, nil).Run(context.Background(), &Config{Workers: 1})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.EntriesProcessed)
	assert.Equal(t, 1, stats.EntriesFailed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], ids[1])
}

func TestRun_RespectsWorkerLimit(t *testing.T) {
	store := setupStore(t)
	createEntries(t, store, 12, false)

	emb := &fakeEmbedder{store: store}
	_, err := New(store, emb, nil).Run(context.Background(), &Config{Workers: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, emb.peak.Load(), int32(3))
}

func TestRun_RejectsConcurrentRuns(t *testing.T) {
	store := setupStore(t)
	createEntries(t, store, 1, false)

	emb := &fakeEmbedder{store: store, block: make(chan struct{})}
	idx := New(store, emb, nil)

	done := make(chan error, 1)
	go func() {
		_, err := idx.Run(context.Background(), &Config{Workers: 1})
		done <- err
	}()

	require.Eventually(t, func() bool { return emb.inFlight.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := idx.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(emb.block)
	require.NoError(t, <-done)
}

func TestRun_Cancelled(t *testing.T) {
	store := setupStore(t)
	createEntries(t, store, 3, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(store, &fakeEmbedder{store: store}, nil).Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexLock(t *testing.T) {
	var l IndexLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())
}
