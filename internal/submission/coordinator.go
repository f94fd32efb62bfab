package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/derived"
	"github.com/donovan0902/project-hunt/internal/index"
	"github.com/donovan0902/project-hunt/internal/ranker"
	"github.com/donovan0902/project-hunt/internal/storage"
	"github.com/donovan0902/project-hunt/pkg/types"
)

// DefaultMinSummaryLength is the shortest accepted summary, in characters.
const DefaultMinSummaryLength = 200

// minQueryLength is the shortest trimmed query that is searched at all.
const minQueryLength = 2

// Config holds coordinator settings.
type Config struct {
	MinSummaryLength int    `koanf:"min_summary_length"`
	Namespace        string `koanf:"namespace"`
	UseSearchCache   bool   `koanf:"use_search_cache"`
}

// Coordinator runs the submission workflow across the entry store and the
// vector index. Store writes are transactional; index calls happen outside
// any transaction and are keyed by entry id so they can be retried.
type Coordinator struct {
	store      storage.Storage
	vector     index.VectorIndex
	ranker     *ranker.Ranker
	maintainer *derived.Maintainer
	logger     *zap.Logger
	cfg        Config

	locks entryLocks
}

// New creates a Coordinator. vector should already carry the per-call
// timeout (see index.New).
func New(store storage.Storage, vector index.VectorIndex, rk *ranker.Ranker, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinSummaryLength <= 0 {
		cfg.MinSummaryLength = DefaultMinSummaryLength
	}
	if cfg.Namespace == "" {
		cfg.Namespace = index.DefaultNamespace
	}
	return &Coordinator{
		store:      store,
		vector:     vector,
		ranker:     rk,
		maintainer: derived.NewMaintainer(logger),
		logger:     logger,
		cfg:        cfg,
	}
}

// BeginSubmission validates fields, stores a Pending entry, embeds it and
// reports similar Active entries. If embedding fails the entry stays Pending
// without a key and the returned Submission carries its id alongside the
// upstream failure.
func (c *Coordinator) BeginSubmission(ctx context.Context, fields types.Fields, ownerID string) (sub *types.Submission, err error) {
	const op = "begin_submission"
	defer func() { record(op, err) }()

	if ownerID == "" {
		return nil, types.NewError(types.KindUnauthorized, op, "caller is required")
	}
	fields.Normalize()
	if err := c.validate(ctx, op, &fields); err != nil {
		return nil, err
	}

	entry := &types.Entry{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Status:  types.StatusPending,
	}
	fields.Apply(entry)

	err = c.withTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateEntry(ctx, entry); err != nil {
			return err
		}
		_, err := c.maintainer.Refresh(ctx, tx, entry.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.ranker.InvalidateCache()

	logger := c.logger.With(zap.String("entry_id", entry.ID), zap.String("owner_id", ownerID))
	logger.Info("entry created", zap.String("name", entry.Name))

	sub = &types.Submission{EntryID: entry.ID}
	text := types.EmbedText(entry.Name, entry.Headline, entry.Summary)
	unlock := c.locks.lock(entry.ID)
	_, err = c.attachEmbedding(ctx, op, entry, text)
	unlock()
	if err != nil {
		logger.Warn("embedding failed, entry left pending without key", zap.Error(err))
		return sub, err
	}

	report, err := c.similarity(ctx, text, entry.ID)
	if err != nil {
		return sub, asUpstream(op, err)
	}
	sub.Report = report
	return sub, nil
}

// Confirm publishes a Pending entry.
func (c *Coordinator) Confirm(ctx context.Context, entryID, callerID string) (err error) {
	const op = "confirm"
	defer func() { record(op, err) }()

	if callerID == "" {
		return types.NewError(types.KindUnauthorized, op, "caller is required")
	}

	unlock := c.locks.lock(entryID)
	defer unlock()

	entry, err := c.loadOwned(ctx, op, entryID, callerID)
	if err != nil {
		return err
	}
	if entry.Status != types.StatusPending {
		return types.NewError(types.KindInvalidState, op, fmt.Sprintf("entry is %s", entry.Status))
	}

	ok, err := c.store.TransitionStatus(ctx, entryID, types.StatusPending, types.StatusActive)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return types.NewError(types.KindInvalidState, op, "entry is no longer pending")
	}
	c.ranker.InvalidateCache()

	if !entry.HasEmbedding() {
		c.logger.Warn("entry confirmed without embedding, backfill required", zap.String("entry_id", entryID))
	}
	c.logger.Info("entry confirmed", zap.String("entry_id", entryID))
	return nil
}

// Cancel discards a Pending entry: its vector is deleted first, then the
// row. An index failure aborts and leaves the entry Pending.
func (c *Coordinator) Cancel(ctx context.Context, entryID, callerID string) (err error) {
	const op = "cancel"
	defer func() { record(op, err) }()

	if callerID == "" {
		return types.NewError(types.KindUnauthorized, op, "caller is required")
	}

	unlock := c.locks.lock(entryID)
	defer unlock()

	entry, err := c.loadOwned(ctx, op, entryID, callerID)
	if err != nil {
		return err
	}
	if entry.Status != types.StatusPending {
		return types.NewError(types.KindInvalidState, op, fmt.Sprintf("entry is %s", entry.Status))
	}

	// The key is always the entry id, so this also removes a vector written
	// before the key was recorded.
	if err := c.vector.Delete(ctx, c.cfg.Namespace, entry.ID); err != nil {
		return asUpstream(op, err)
	}

	deleted, err := c.store.DeletePendingEntry(ctx, entryID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !deleted {
		// Confirmed by another process after our check; put its vector back.
		if _, err := c.vector.Add(ctx, c.cfg.Namespace, entry.ID, types.EmbedText(entry.Name, entry.Headline, entry.Summary)); err != nil {
			c.logger.Error("failed to restore vector of confirmed entry", zap.String("entry_id", entryID), zap.Error(err))
		}
		return types.NewError(types.KindInvalidState, op, "entry is no longer pending")
	}
	c.ranker.InvalidateCache()

	c.logger.Info("entry cancelled", zap.String("entry_id", entryID))
	return nil
}

// EditFields merges patch over the entry's stored fields, validates the
// result, re-embeds it at the same key and returns the similarity report for
// the new text. Fields the patch leaves nil keep their stored value. Status
// is unchanged.
func (c *Coordinator) EditFields(ctx context.Context, entryID string, patch types.FieldsPatch, callerID string) (report *types.SimilarityReport, err error) {
	const op = "edit"
	defer func() { record(op, err) }()

	if callerID == "" {
		return nil, types.NewError(types.KindUnauthorized, op, "caller is required")
	}

	unlock := c.locks.lock(entryID)
	defer unlock()

	entry, err := c.loadOwned(ctx, op, entryID, callerID)
	if err != nil {
		return nil, err
	}

	fields := patch.Merge(types.FieldsOf(entry))
	fields.Normalize()
	if err := c.validate(ctx, op, &fields); err != nil {
		return nil, err
	}
	fields.Apply(entry)

	err = c.withTx(ctx, func(tx storage.Tx) error {
		if err := tx.UpdateEntryFields(ctx, entry); err != nil {
			return err
		}
		_, err := c.maintainer.Refresh(ctx, tx, entry.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translate(op, err))
	}
	c.ranker.InvalidateCache()

	text := types.EmbedText(entry.Name, entry.Headline, entry.Summary)
	if _, err := c.attachEmbedding(ctx, op, entry, text); err != nil {
		c.logger.Warn("re-embedding after edit failed", zap.String("entry_id", entryID), zap.Error(err))
		return nil, err
	}

	report, err = c.similarity(ctx, text, entry.ID)
	if err != nil {
		return nil, asUpstream(op, err)
	}

	c.logger.Info("entry edited", zap.String("entry_id", entryID), zap.Int("similar", len(report.Hits)))
	return report, nil
}

// Backfill embeds an entry that has no key yet and returns its key. Entries
// that already have one are returned unchanged.
func (c *Coordinator) Backfill(ctx context.Context, entryID string) (key string, err error) {
	const op = "backfill"
	defer func() { record(op, err) }()

	unlock := c.locks.lock(entryID)
	defer unlock()

	entry, err := c.store.GetEntry(ctx, entryID)
	if err != nil {
		return "", translate(op, err)
	}
	if entry.HasEmbedding() {
		return entry.EmbeddingKey, nil
	}

	key, err = c.attachEmbedding(ctx, op, entry, types.EmbedText(entry.Name, entry.Headline, entry.Summary))
	if err != nil {
		return "", err
	}
	c.logger.Info("embedding backfilled", zap.String("entry_id", entryID))
	return key, nil
}

// Reembed writes a fresh vector at the entry's key whether or not one is
// already recorded. Used after switching or rebuilding the vector index.
func (c *Coordinator) Reembed(ctx context.Context, entryID string) (key string, err error) {
	const op = "reembed"
	defer func() { record(op, err) }()

	unlock := c.locks.lock(entryID)
	defer unlock()

	entry, err := c.store.GetEntry(ctx, entryID)
	if err != nil {
		return "", translate(op, err)
	}

	key, err = c.attachEmbedding(ctx, op, entry, types.EmbedText(entry.Name, entry.Headline, entry.Summary))
	if err != nil {
		return "", err
	}
	return key, nil
}

// attachEmbedding upserts the vector for entry and records the key if the
// entry had none. Index failures come back as Upstream; a failure to record
// the key removes the vector just written and returns the store error as is.
// Callers hold the entry lock.
func (c *Coordinator) attachEmbedding(ctx context.Context, op string, entry *types.Entry, text string) (string, error) {
	key, err := c.vector.Add(ctx, c.cfg.Namespace, entry.ID, text)
	if err != nil {
		return "", asUpstream(op, err)
	}
	if entry.HasEmbedding() {
		return entry.EmbeddingKey, nil
	}
	if err := c.store.SetEmbeddingKey(ctx, entry.ID, key); err != nil {
		if derr := c.vector.Delete(ctx, c.cfg.Namespace, key); derr != nil {
			c.logger.Error("failed to remove unrecorded vector",
				zap.String("entry_id", entry.ID), zap.String("key", key), zap.Error(derr))
		}
		return "", fmt.Errorf("%s: record embedding key: %w", op, translate(op, err))
	}
	entry.EmbeddingKey = key
	return key, nil
}

// SimilaritySearch reports Active entries whose vector similarity to text
// reaches the dedup threshold, excluding excludeID.
func (c *Coordinator) SimilaritySearch(ctx context.Context, text, excludeID string) (report *types.SimilarityReport, err error) {
	const op = "similarity_search"
	defer func() { record(op, err) }()

	if strings.TrimSpace(text) == "" {
		return nil, types.NewError(types.KindValidation, op, "text is required")
	}
	report, err = c.similarity(ctx, text, excludeID)
	if err != nil {
		return nil, asUpstream(op, err)
	}
	return report, nil
}

// SimilarityForFields runs SimilaritySearch on the text a submission with
// these fields would be embedded with. Inputs too short to compare give an
// empty report.
func (c *Coordinator) SimilarityForFields(ctx context.Context, name, headline, summary, excludeID string) (*types.SimilarityReport, error) {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < minQueryLength &&
		utf8.RuneCountInString(strings.TrimSpace(summary)) < minQueryLength {
		return &types.SimilarityReport{Hits: []types.SimilarHit{}}, nil
	}
	return c.SimilaritySearch(ctx, types.EmbedText(name, headline, summary), excludeID)
}

func (c *Coordinator) similarity(ctx context.Context, text, excludeID string) (*types.SimilarityReport, error) {
	resp, err := c.ranker.Search(ctx, ranker.Request{
		Text:      text,
		Mode:      ranker.ModeDedup,
		ExcludeID: excludeID,
		UseCache:  c.cfg.UseSearchCache,
	})
	if err != nil {
		return nil, err
	}

	report := &types.SimilarityReport{Hits: make([]types.SimilarHit, 0, len(resp.Results))}
	for _, r := range resp.Results {
		report.Hits = append(report.Hits, types.SimilarHit{
			EntryID:  r.Entry.ID,
			Name:     r.Entry.Name,
			Headline: r.Entry.Headline,
			Score:    r.VectorScore,
		})
	}
	SimilarHits.Observe(float64(len(report.Hits)))
	return report, nil
}

// HybridSearch runs open search, leaving out excludeID when it is set. A
// blank query is rejected; a query shorter than two characters returns no
// results.
func (c *Coordinator) HybridSearch(ctx context.Context, query, excludeID string) (results []types.SearchResult, err error) {
	const op = "hybrid_search"
	defer func() { record(op, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewError(types.KindValidation, op, "query is required")
	}
	if utf8.RuneCountInString(query) < minQueryLength {
		return []types.SearchResult{}, nil
	}

	resp, err := c.ranker.Search(ctx, ranker.Request{
		Text:      query,
		Mode:      ranker.ModeOpen,
		ExcludeID: strings.TrimSpace(excludeID),
		UseCache:  c.cfg.UseSearchCache,
	})
	if err != nil {
		return nil, asUpstream(op, err)
	}
	SearchDuration.Observe(resp.Duration.Seconds())
	return resp.Results, nil
}

// Get returns an entry. Pending entries are visible only to their owner.
func (c *Coordinator) Get(ctx context.Context, entryID, callerID string) (*types.Entry, error) {
	const op = "get"
	entry, err := c.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, translate(op, err)
	}
	if !entry.IsActive() && entry.OwnerID != callerID {
		return nil, types.NewError(types.KindNotFound, op, "entry not found")
	}
	return entry, nil
}

// List returns Active entries ordered by sort. A non-empty focusAreaID keeps
// only entries tagged with that focus area.
func (c *Coordinator) List(ctx context.Context, sort storage.SortOrder, focusAreaID string, limit int) ([]*types.Entry, error) {
	switch sort {
	case storage.SortNewest, storage.SortUpvotes:
	case "":
		sort = storage.SortNewest
	default:
		return nil, types.NewError(types.KindValidation, "list", fmt.Sprintf("unknown sort %q", sort))
	}
	return c.store.ListEntries(ctx, storage.ListFilter{
		Status:      types.StatusActive,
		FocusAreaID: strings.TrimSpace(focusAreaID),
		Sort:        sort,
		Limit:       limit,
	})
}

// ListByOwner returns the owner's entries, newest first. Callers other than
// the owner only see Active ones.
func (c *Coordinator) ListByOwner(ctx context.Context, ownerID, callerID string) ([]*types.Entry, error) {
	filter := storage.ListFilter{OwnerID: ownerID, Sort: storage.SortNewest}
	if callerID != ownerID {
		filter.Status = types.StatusActive
	}
	return c.store.ListEntries(ctx, filter)
}

// Status returns store statistics.
func (c *Coordinator) Status(ctx context.Context) (*storage.StoreStatus, error) {
	return c.store.GetStatus(ctx)
}

// validate checks fields and that the referenced team and focus areas exist.
func (c *Coordinator) validate(ctx context.Context, op string, fields *types.Fields) error {
	if err := fields.Validate(c.cfg.MinSummaryLength); err != nil {
		var e *types.Error
		if errors.As(err, &e) {
			return types.NewError(e.Kind, op, e.Msg)
		}
		return err
	}
	if fields.TeamID != "" {
		if _, err := c.store.GetTeam(ctx, fields.TeamID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return types.NewError(types.KindValidation, op, fmt.Sprintf("team %s does not exist", fields.TeamID))
			}
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	for _, id := range fields.FocusAreaIDs {
		if _, err := c.store.GetFocusArea(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return types.NewError(types.KindValidation, op, fmt.Sprintf("focus area %s does not exist", id))
			}
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// loadOwned loads an entry and checks that callerID owns it.
func (c *Coordinator) loadOwned(ctx context.Context, op, entryID, callerID string) (*types.Entry, error) {
	entry, err := c.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, translate(op, err)
	}
	if entry.OwnerID != callerID {
		return nil, types.NewError(types.KindForbidden, op, "only the owner can modify this entry")
	}
	return entry, nil
}

// withTx runs fn in a transaction. No index calls may happen inside fn: the
// store holds a single connection for the duration.
func (c *Coordinator) withTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// translate maps storage.ErrNotFound to the NotFound kind.
func translate(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return types.WrapError(types.KindNotFound, op, err)
	}
	return err
}

func asUpstream(op string, err error) error {
	switch types.KindOf(err) {
	case types.KindUpstream, types.KindValidation:
		return err
	}
	return types.WrapError(types.KindUpstream, op, err)
}

func record(op string, err error) {
	result := "ok"
	if err != nil {
		result = types.KindOf(err).String()
	}
	OperationsTotal.WithLabelValues(op, result).Inc()
}
