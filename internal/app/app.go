// Package app wires the configured components into a running service.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/config"
	"github.com/donovan0902/project-hunt/internal/embedder"
	"github.com/donovan0902/project-hunt/internal/index"
	"github.com/donovan0902/project-hunt/internal/indexer"
	"github.com/donovan0902/project-hunt/internal/ranker"
	"github.com/donovan0902/project-hunt/internal/storage"
	"github.com/donovan0902/project-hunt/internal/submission"
)

// App holds every long-lived component. A single embedder instance is shared
// by the vector index and everything built on it.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Store       *storage.SQLiteStorage
	Embedder    embedder.Embedder
	Indexes     *index.Indexes
	Ranker      *ranker.Ranker
	Coordinator *submission.Coordinator
	Indexer     *indexer.Indexer
}

// New builds the component graph from cfg. Components are closed in reverse
// order if a later step fails.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	idx, err := index.New(ctx, cfg.Index, store, emb)
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	rk, err := ranker.New(store, idx.Vector, idx.Lexical, ranker.Options{
		Namespace: cfg.Index.Namespace,
		CacheSize: cfg.Ranker.CacheSize,
		CacheTTL:  cfg.Ranker.CacheTTL,
		Logger:    logger.Named("ranker"),
	})
	if err != nil {
		_ = idx.Close()
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create ranker: %w", err)
	}

	subCfg := cfg.Submission
	subCfg.Namespace = cfg.Index.Namespace
	coord := submission.New(store, idx.Vector, rk, subCfg, logger.Named("submission"))

	logger.Info("components ready",
		zap.String("storage", cfg.Storage.Path),
		zap.String("build_mode", storage.BuildMode),
		zap.String("embedder", emb.Provider()),
		zap.String("model", emb.Model()),
		zap.String("index_backend", cfg.Index.Backend))

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Embedder:    emb,
		Indexes:     idx,
		Ranker:      rk,
		Coordinator: coord,
		Indexer:     indexer.New(store, coord, logger.Named("indexer")),
	}, nil
}

// IndexerConfig returns the backfill run settings from configuration.
func (a *App) IndexerConfig(force bool) *indexer.Config {
	return &indexer.Config{
		Workers:   a.Config.Indexer.Workers,
		BatchSize: a.Config.Indexer.BatchSize,
		Force:     force,
	}
}

// Close releases all resources.
func (a *App) Close() error {
	return errors.Join(
		a.Indexes.Close(),
		a.Embedder.Close(),
		a.Store.Close(),
	)
}
