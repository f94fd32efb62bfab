package ranker

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/donovan0902/project-hunt/internal/index"
	"github.com/donovan0902/project-hunt/pkg/types"
)

// Mode selects the ranking parameters.
type Mode string

const (
	ModeOpen  Mode = "open"  // Vector + lexical fusion
	ModeDedup Mode = "dedup" // Vector only, strict threshold
)

// Params tunes one ranking mode.
type Params struct {
	VectorThreshold float32 // Minimum cosine similarity for vector hits
	VectorLimit     int     // Vector hits fetched before fusion
	LexicalLimit    int     // Lexical hits fetched before fusion, 0 disables the lexical stage
	ResultLimit     int     // Results kept after filtering, 0 keeps the whole fused list

	K             float64 // Rank offset in the reciprocal-rank formula
	VectorWeight  float64
	LexicalWeight float64
}

// OpenSearchParams returns the parameters for open search.
func OpenSearchParams() Params {
	return Params{
		VectorThreshold: 0.3,
		VectorLimit:     16,
		LexicalLimit:    8,
		K:               10,
		VectorWeight:    2,
		LexicalWeight:   1,
	}
}

// DedupParams returns the parameters for near-duplicate gating. Twice the
// result limit is fetched so filtered entries do not starve the report.
func DedupParams() Params {
	return Params{
		VectorThreshold: 0.6,
		VectorLimit:     10,
		ResultLimit:     5,
		K:               10,
		VectorWeight:    2,
		LexicalWeight:   1,
	}
}

// ParamsFor returns the default parameters for mode.
func ParamsFor(mode Mode) (Params, error) {
	switch mode {
	case ModeOpen, "":
		return OpenSearchParams(), nil
	case ModeDedup:
		return DedupParams(), nil
	default:
		return Params{}, fmt.Errorf("unsupported ranking mode: %s", mode)
	}
}

// Request contains parameters for a ranking operation
type Request struct {
	Text      string
	Mode      Mode
	ExcludeID string // Entry dropped from the results, usually the caller's own
	UseCache  bool
}

// Response contains ranked results and metadata
type Response struct {
	Results       []types.SearchResult
	TotalResults  int
	Mode          Mode
	Duration      time.Duration
	CacheHit      bool
	VectorResults int
	TextResults   int
}

// EntryReader loads entries by id.
type EntryReader interface {
	GetEntries(ctx context.Context, ids []string) (map[string]*types.Entry, error)
}

// Options configures a Ranker.
type Options struct {
	Namespace string        // Vector namespace, defaults to index.DefaultNamespace
	CacheSize int           // Response cache entries, 0 disables caching
	CacheTTL  time.Duration // Defaults to one minute
	Logger    *zap.Logger
}

// cacheEntry represents a cached response with expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Ranker fuses vector and lexical results into one ordered list of Active
// entries.
type Ranker struct {
	entries   EntryReader
	vector    index.VectorIndex
	lexical   index.LexicalIndex
	namespace string
	logger    *zap.Logger

	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheTTL time.Duration
	cacheMu  sync.RWMutex
	cacheGen uint64 // bumped on every purge, guarded by cacheMu
}

// New creates a Ranker.
func New(entries EntryReader, vector index.VectorIndex, lexical index.LexicalIndex, opts Options) (*Ranker, error) {
	r := &Ranker{
		entries:   entries,
		vector:    vector,
		lexical:   lexical,
		namespace: opts.Namespace,
		logger:    opts.Logger,
		cacheTTL:  opts.CacheTTL,
	}
	if r.namespace == "" {
		r.namespace = index.DefaultNamespace
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = time.Minute
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[[32]byte, *cacheEntry](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create LRU cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Search ranks entries for req.Text with the parameters of req.Mode.
func (r *Ranker) Search(ctx context.Context, req Request) (*Response, error) {
	params, err := ParamsFor(req.Mode)
	if err != nil {
		return nil, types.NewError(types.KindValidation, "rank", err.Error())
	}
	if req.Mode == "" {
		req.Mode = ModeOpen
	}
	return r.SearchWithParams(ctx, req, params)
}

// SearchWithParams ranks with explicit parameters.
func (r *Ranker) SearchWithParams(ctx context.Context, req Request, params Params) (*Response, error) {
	startTime := time.Now()

	if strings.TrimSpace(req.Text) == "" {
		return nil, types.NewError(types.KindValidation, "rank", "query cannot be empty")
	}

	useCache := req.UseCache && r.cache != nil
	var gen uint64
	if useCache {
		gen = r.cacheGeneration()
		if cached := r.checkCache(req, params); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	vectorHits, lexicalIDs, err := r.gather(ctx, req.Text, params)
	if err != nil {
		return nil, err
	}

	fused := fuse(vectorHits, lexicalIDs, params)
	results, err := r.join(ctx, fused, req.ExcludeID, params.ResultLimit)
	if err != nil {
		return nil, err
	}

	response := &Response{
		Results:       results,
		TotalResults:  len(results),
		Mode:          req.Mode,
		Duration:      time.Since(startTime),
		VectorResults: len(vectorHits),
		TextResults:   len(lexicalIDs),
	}

	r.logger.Debug("ranked",
		zap.String("mode", string(req.Mode)),
		zap.Int("vector_hits", len(vectorHits)),
		zap.Int("lexical_hits", len(lexicalIDs)),
		zap.Int("results", len(results)),
		zap.Duration("duration", response.Duration))

	if useCache {
		r.storeInCache(req, params, response, gen)
	}
	return response, nil
}

// gather runs the vector and lexical searches concurrently. A failure of
// either fails the whole search.
func (r *Ranker) gather(ctx context.Context, text string, params Params) ([]index.VectorHit, []string, error) {
	var (
		vectorHits []index.VectorHit
		lexicalIDs []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.vector.Search(gctx, r.namespace, text, params.VectorLimit, params.VectorThreshold)
		if err != nil {
			return upstream("vector search", err)
		}
		vectorHits = hits
		return nil
	})
	if params.LexicalLimit > 0 && r.lexical != nil {
		g.Go(func() error {
			ids, err := r.lexical.Search(gctx, text, params.LexicalLimit)
			if err != nil {
				return upstream("lexical search", err)
			}
			lexicalIDs = ids
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vectorHits, lexicalIDs, nil
}

func upstream(op string, err error) error {
	if types.KindOf(err) == types.KindUpstream {
		return err
	}
	return types.WrapError(types.KindUpstream, op, err)
}

// rankedResult is an entry id with its fused score and per-list ranks
type rankedResult struct {
	id          string
	score       float64
	vectorScore float32
	vectorRank  int // 1-based, 0 when absent
	lexicalRank int // 1-based, 0 when absent
}

// fuse applies weighted Reciprocal Rank Fusion:
// score(id) = Σ weight(list) / (k + rank(id, list)), ranks 1-based.
// Ties go to the better vector rank (absent last), then the smaller id.
func fuse(vectorHits []index.VectorHit, lexicalIDs []string, params Params) []rankedResult {
	byID := make(map[string]*rankedResult, len(vectorHits)+len(lexicalIDs))
	order := make([]*rankedResult, 0, len(vectorHits)+len(lexicalIDs))

	get := func(id string) *rankedResult {
		rr, ok := byID[id]
		if !ok {
			rr = &rankedResult{id: id}
			byID[id] = rr
			order = append(order, rr)
		}
		return rr
	}

	for i, hit := range vectorHits {
		rr := get(hit.Key)
		if rr.vectorRank != 0 {
			continue // keep the best rank of a duplicated key
		}
		rr.vectorRank = i + 1
		rr.vectorScore = hit.Score
		rr.score += params.VectorWeight / (params.K + float64(i+1))
	}
	for i, id := range lexicalIDs {
		rr := get(id)
		if rr.lexicalRank != 0 {
			continue
		}
		rr.lexicalRank = i + 1
		rr.score += params.LexicalWeight / (params.K + float64(i+1))
	}

	results := make([]rankedResult, len(order))
	for i, rr := range order {
		results[i] = *rr
	}
	sortRankedResults(results)
	return results
}

// sortRankedResults sorts by score descending with deterministic tie-breaks
func sortRankedResults(results []rankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.vectorRank != b.vectorRank {
			if a.vectorRank == 0 {
				return false
			}
			if b.vectorRank == 0 {
				return true
			}
			return a.vectorRank < b.vectorRank
		}
		return a.id < b.id
	})
}

// join loads the fused ids, keeps Active entries, drops excludeID and keeps
// the fused order. Ids the store no longer has are skipped.
func (r *Ranker) join(ctx context.Context, ranked []rankedResult, excludeID string, limit int) ([]types.SearchResult, error) {
	if len(ranked) == 0 {
		return []types.SearchResult{}, nil
	}

	ids := make([]string, len(ranked))
	for i, rr := range ranked {
		ids[i] = rr.id
	}
	entries, err := r.entries.GetEntries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranked entries: %w", err)
	}

	results := make([]types.SearchResult, 0, len(ranked))
	for _, rr := range ranked {
		if rr.id == excludeID {
			continue
		}
		entry, ok := entries[rr.id]
		if !ok || !entry.IsActive() {
			continue
		}
		results = append(results, types.SearchResult{
			Entry:       entry,
			Rank:        len(results) + 1,
			Score:       rr.score,
			VectorScore: rr.vectorScore,
			VectorRank:  rr.vectorRank,
			LexicalRank: rr.lexicalRank,
		})
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}

// checkCache returns a copy of a live cached response, or nil
func (r *Ranker) checkCache(req Request, params Params) *Response {
	hash := computeRequestHash(req, params)
	now := time.Now()

	r.cacheMu.RLock()
	entry, found := r.cache.Get(hash)
	if !found {
		r.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		r.cacheMu.RUnlock()

		r.cacheMu.Lock()
		r.cache.Remove(hash)
		r.cacheMu.Unlock()
		return nil
	}
	response := copyResponse(entry.response)
	r.cacheMu.RUnlock()

	return response
}

func (r *Ranker) cacheGeneration() uint64 {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.cacheGen
}

// storeInCache records response unless the cache was purged after gen was
// read, so a search racing a write cannot repopulate a stale ranking.
func (r *Ranker) storeInCache(req Request, params Params, response *Response, gen uint64) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(r.cacheTTL),
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if r.cacheGen != gen {
		return
	}
	r.cache.Add(computeRequestHash(req, params), entry)
}

// InvalidateCache drops every cached response. Called after any write that
// can change a ranking.
func (r *Ranker) InvalidateCache() {
	if r.cache == nil {
		return
	}
	r.cacheMu.Lock()
	r.cacheGen++
	r.cache.Purge()
	r.cacheMu.Unlock()
}

// copyResponse deep-copies a response so cached entries cannot be mutated
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, result := range src.Results {
		dst.Results[i] = result
		if result.Entry != nil {
			entryCopy := *result.Entry
			dst.Results[i].Entry = &entryCopy
		}
	}
	return &dst
}

// computeRequestHash computes a unique hash for a ranking request
func computeRequestHash(req Request, params Params) [32]byte {
	var data strings.Builder
	data.WriteString(req.Text)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	data.WriteString(req.ExcludeID)
	data.WriteString(fmt.Sprintf("|%.3f|%d|%d|%d|%.3f|%.3f|%.3f",
		params.VectorThreshold, params.VectorLimit, params.LexicalLimit, params.ResultLimit,
		params.K, params.VectorWeight, params.LexicalWeight))
	return sha256.Sum256([]byte(data.String()))
}
