package ranker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donovan0902/project-hunt/internal/index"
	"github.com/donovan0902/project-hunt/pkg/types"
)

// fakeVector returns a fixed scored list, honoring limit and minScore like a
// real index.
type fakeVector struct {
	hits  []index.VectorHit
	err   error
	calls atomic.Int32
}

func (f *fakeVector) Add(ctx context.Context, namespace, key, text string) (string, error) {
	return key, nil
}

func (f *fakeVector) Search(ctx context.Context, namespace, text string, limit int, minScore float32) ([]index.VectorHit, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]index.VectorHit, 0, limit)
	for _, h := range f.hits {
		if h.Score < minScore {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeVector) Delete(ctx context.Context, namespace, key string) error { return nil }

type fakeLexical struct {
	ids   []string
	err   error
	calls atomic.Int32
}

func (f *fakeLexical) Search(ctx context.Context, query string, limit int) ([]string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.ids) {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

type fakeEntries map[string]*types.Entry

func (f fakeEntries) GetEntries(ctx context.Context, ids []string) (map[string]*types.Entry, error) {
	out := make(map[string]*types.Entry, len(ids))
	for _, id := range ids {
		if e, ok := f[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func activeEntries(ids ...string) fakeEntries {
	m := fakeEntries{}
	for _, id := range ids {
		m[id] = &types.Entry{ID: id, Name: "entry " + id, Status: types.StatusActive}
	}
	return m
}

func resultIDs(results []types.SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Entry.ID
	}
	return ids
}

func newTestRanker(t *testing.T, entries EntryReader, vec index.VectorIndex, lex index.LexicalIndex, opts Options) *Ranker {
	t.Helper()
	r, err := New(entries, vec, lex, opts)
	require.NoError(t, err)
	return r
}

func TestFuse_WeightedScores(t *testing.T) {
	vec := []index.VectorHit{{Key: "a", Score: 0.9}, {Key: "b", Score: 0.8}}
	lex := []string{"b", "c"}

	got := fuse(vec, lex, OpenSearchParams())
	require.Len(t, got, 3)

	assert.Equal(t, "b", got[0].id)
	assert.InDelta(t, 2.0/12+1.0/11, got[0].score, 1e-12)
	assert.Equal(t, 2, got[0].vectorRank)
	assert.Equal(t, 1, got[0].lexicalRank)

	assert.Equal(t, "a", got[1].id)
	assert.InDelta(t, 2.0/11, got[1].score, 1e-12)
	assert.Equal(t, float32(0.9), got[1].vectorScore)

	assert.Equal(t, "c", got[2].id)
	assert.InDelta(t, 1.0/12, got[2].score, 1e-12)
	assert.Equal(t, 0, got[2].vectorRank)
}

func TestFuse_TieGoesToVectorPresence(t *testing.T) {
	// vector rank 12 scores 2/22, lexical rank 1 scores 1/11
	vec := make([]index.VectorHit, 12)
	for i := range vec {
		vec[i] = index.VectorHit{Key: fmt.Sprintf("v%02d", i+1), Score: 0.9}
	}
	got := fuse(vec, []string{"lex"}, OpenSearchParams())

	pos := map[string]int{}
	for i, rr := range got {
		pos[rr.id] = i
	}
	assert.Equal(t, pos["v12"]+1, pos["lex"])
}

func TestSortRankedResults_TieBreaks(t *testing.T) {
	results := []rankedResult{
		{id: "z", score: 0.1},
		{id: "y", score: 0.1, vectorRank: 3},
		{id: "x", score: 0.1, vectorRank: 2},
		{id: "b", score: 0.1},
		{id: "top", score: 0.5},
	}
	sortRankedResults(results)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.id
	}
	assert.Equal(t, []string{"top", "x", "y", "b", "z"}, ids)
}

func TestFuse_Deterministic(t *testing.T) {
	vec := []index.VectorHit{{Key: "a"}, {Key: "b"}, {Key: "c"}, {Key: "d"}}
	lex := []string{"d", "e", "a", "f"}
	want := fuse(vec, lex, OpenSearchParams())

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]rankedResult(nil), want...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		sortRankedResults(shuffled)
		assert.Equal(t, want, shuffled)
		assert.Equal(t, want, fuse(vec, lex, OpenSearchParams()))
	}
}

func TestFuse_DuplicateKeysKeepBestRank(t *testing.T) {
	vec := []index.VectorHit{{Key: "a", Score: 0.9}, {Key: "a", Score: 0.7}}
	got := fuse(vec, nil, DedupParams())
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].vectorRank)
	assert.InDelta(t, 2.0/11, got[0].score, 1e-12)
}

func TestSearch_OpenMode(t *testing.T) {
	ctx := context.Background()
	entries := activeEntries("a", "b", "c")
	entries["p"] = &types.Entry{ID: "p", Status: types.StatusPending}

	vec := &fakeVector{hits: []index.VectorHit{{Key: "p", Score: 0.95}, {Key: "a", Score: 0.9}, {Key: "gone", Score: 0.8}, {Key: "b", Score: 0.5}}}
	lex := &fakeLexical{ids: []string{"c", "b"}}
	r := newTestRanker(t, entries, vec, lex, Options{})

	resp, err := r.Search(ctx, Request{Text: "invoice", Mode: ModeOpen})
	require.NoError(t, err)

	// fused order is b, p, a, gone, c; pending and missing entries are dropped
	assert.Equal(t, []string{"b", "a", "c"}, resultIDs(resp.Results))
	for i, res := range resp.Results {
		assert.Equal(t, i+1, res.Rank)
	}
	assert.Equal(t, 4, resp.VectorResults)
	assert.Equal(t, 2, resp.TextResults)
	assert.Equal(t, int32(1), lex.calls.Load())
}

func TestSearch_Exclusion(t *testing.T) {
	ctx := context.Background()
	entries := activeEntries("self", "a")
	vec := &fakeVector{hits: []index.VectorHit{{Key: "self", Score: 1}, {Key: "a", Score: 0.7}}}
	r := newTestRanker(t, entries, vec, &fakeLexical{ids: []string{"self"}}, Options{})

	for _, mode := range []Mode{ModeOpen, ModeDedup} {
		resp, err := r.Search(ctx, Request{Text: "text", Mode: mode, ExcludeID: "self"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, resultIDs(resp.Results), mode)
	}
}

func TestSearch_DedupMode(t *testing.T) {
	ctx := context.Background()
	ids := []string{"e1", "e2", "e3", "e4", "e5", "e6", "e7"}
	entries := activeEntries(ids...)

	hits := make([]index.VectorHit, 0, len(ids)+1)
	hits = append(hits, index.VectorHit{Key: "weak", Score: 0.59})
	for i, id := range ids {
		hits = append(hits, index.VectorHit{Key: id, Score: 0.95 - float32(i)*0.05})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	vec := &fakeVector{hits: hits}
	lex := &fakeLexical{ids: []string{"e7"}}
	r := newTestRanker(t, entries, vec, lex, Options{})

	resp, err := r.Search(ctx, Request{Text: "text", Mode: ModeDedup})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5"}, resultIDs(resp.Results))
	assert.Equal(t, int32(0), lex.calls.Load())
	assert.Equal(t, float32(0.95), resp.Results[0].VectorScore)
	for _, res := range resp.Results {
		assert.GreaterOrEqual(t, res.VectorScore, float32(0.6))
	}
}

func TestSearch_ThresholdMonotonicity(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 25; round++ {
		entries := fakeEntries{}
		var hits []index.VectorHit
		var lexIDs []string
		for i := 0; i < 30; i++ {
			id := fmt.Sprintf("e%02d", i)
			status := types.StatusActive
			if rng.Intn(4) == 0 {
				status = types.StatusPending
			}
			entries[id] = &types.Entry{ID: id, Status: status}
			hits = append(hits, index.VectorHit{Key: id, Score: rng.Float32()})
			if rng.Intn(3) == 0 {
				lexIDs = append(lexIDs, id)
			}
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].Score != hits[j].Score {
				return hits[i].Score > hits[j].Score
			}
			return hits[i].Key < hits[j].Key
		})

		r := newTestRanker(t, entries, &fakeVector{hits: hits}, &fakeLexical{ids: lexIDs}, Options{})
		exclude := fmt.Sprintf("e%02d", rng.Intn(30))

		open, err := r.Search(ctx, Request{Text: "q", Mode: ModeOpen, ExcludeID: exclude})
		require.NoError(t, err)
		dedup, err := r.Search(ctx, Request{Text: "q", Mode: ModeDedup, ExcludeID: exclude})
		require.NoError(t, err)

		assert.Subset(t, resultIDs(open.Results), resultIDs(dedup.Results), "round %d", round)
	}
}

func TestSearch_UpstreamFailures(t *testing.T) {
	ctx := context.Background()
	entries := activeEntries("a")

	vecErr := &fakeVector{err: errors.New("vector down")}
	r := newTestRanker(t, entries, vecErr, &fakeLexical{ids: []string{"a"}}, Options{})
	_, err := r.Search(ctx, Request{Text: "q"})
	assert.ErrorIs(t, err, types.ErrUpstreamFailure)

	lexErr := &fakeLexical{err: errors.New("fts down")}
	r = newTestRanker(t, entries, &fakeVector{hits: []index.VectorHit{{Key: "a", Score: 0.9}}}, lexErr, Options{})
	_, err = r.Search(ctx, Request{Text: "q"})
	assert.ErrorIs(t, err, types.ErrUpstreamFailure)

	// dedup never touches the lexical index
	resp, err := r.Search(ctx, Request{Text: "q", Mode: ModeDedup})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestSearch_Validation(t *testing.T) {
	r := newTestRanker(t, fakeEntries{}, &fakeVector{}, &fakeLexical{}, Options{})

	_, err := r.Search(context.Background(), Request{Text: "   "})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = r.Search(context.Background(), Request{Text: "q", Mode: "fuzzy"})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestSearch_Cache(t *testing.T) {
	ctx := context.Background()
	entries := activeEntries("a")
	vec := &fakeVector{hits: []index.VectorHit{{Key: "a", Score: 0.9}}}
	r := newTestRanker(t, entries, vec, &fakeLexical{}, Options{CacheSize: 10})

	req := Request{Text: "q", UseCache: true}
	first, err := r.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// mutating a returned result must not leak into the cache
	first.Results[0].Entry.Name = "mutated"

	second, err := r.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "entry a", second.Results[0].Entry.Name)
	assert.Equal(t, int32(1), vec.calls.Load())

	r.InvalidateCache()
	third, err := r.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Equal(t, int32(2), vec.calls.Load())

	// different exclusion is a different cache key
	_, err = r.Search(ctx, Request{Text: "q", UseCache: true, ExcludeID: "a"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), vec.calls.Load())
}

func TestSearch_CacheDisabled(t *testing.T) {
	vec := &fakeVector{}
	r := newTestRanker(t, fakeEntries{}, vec, &fakeLexical{}, Options{})
	r.InvalidateCache()

	for i := 0; i < 2; i++ {
		resp, err := r.Search(context.Background(), Request{Text: "q", UseCache: true})
		require.NoError(t, err)
		assert.False(t, resp.CacheHit)
		assert.Empty(t, resp.Results)
	}
	assert.Equal(t, int32(2), vec.calls.Load())
}

// blockingVector parks Search until release is closed.
type blockingVector struct {
	fakeVector
	entered chan struct{}
	release chan struct{}
	blocked atomic.Bool
}

func (b *blockingVector) Search(ctx context.Context, namespace, text string, limit int, minScore float32) ([]index.VectorHit, error) {
	if b.blocked.CompareAndSwap(false, true) {
		close(b.entered)
		<-b.release
	}
	return b.fakeVector.Search(ctx, namespace, text, limit, minScore)
}

func TestSearch_InvalidateDuringSearchSkipsStore(t *testing.T) {
	ctx := context.Background()
	vec := &blockingVector{
		fakeVector: fakeVector{hits: []index.VectorHit{{Key: "a", Score: 0.9}}},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	r := newTestRanker(t, activeEntries("a"), vec, &fakeLexical{}, Options{CacheSize: 10})
	req := Request{Text: "q", UseCache: true}

	done := make(chan error, 1)
	go func() {
		_, err := r.Search(ctx, req)
		done <- err
	}()

	<-vec.entered
	r.InvalidateCache()
	close(vec.release)
	require.NoError(t, <-done)

	next, err := r.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, next.CacheHit, "a search that straddled a purge must not populate the cache")
	assert.Equal(t, int32(2), vec.calls.Load())

	again, err := r.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
}
