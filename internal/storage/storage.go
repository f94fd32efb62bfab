package storage

import (
	"context"
	"time"

	"github.com/donovan0902/project-hunt/pkg/types"
)

// Storage defines the interface for persisting and querying project listings
type Storage interface {
	// Entry operations
	CreateEntry(ctx context.Context, entry *types.Entry) error
	GetEntry(ctx context.Context, id string) (*types.Entry, error)
	GetEntries(ctx context.Context, ids []string) (map[string]*types.Entry, error)
	UpdateEntryFields(ctx context.Context, entry *types.Entry) error
	SetDerivedText(ctx context.Context, id, text string) error
	SetEmbeddingKey(ctx context.Context, id, key string) error
	TransitionStatus(ctx context.Context, id string, from, to types.Status) (bool, error)
	DeletePendingEntry(ctx context.Context, id string) (bool, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]*types.Entry, error)
	ListEntriesMissingEmbedding(ctx context.Context, limit int) ([]*types.Entry, error)
	ListEntryIDsByTeam(ctx context.Context, teamID string) ([]string, error)

	// Team operations
	CreateTeam(ctx context.Context, team *types.Team) error
	GetTeam(ctx context.Context, id string) (*types.Team, error)
	UpdateTeam(ctx context.Context, team *types.Team) error

	// Focus area operations
	CreateFocusArea(ctx context.Context, area *types.FocusArea) error
	GetFocusArea(ctx context.Context, id string) (*types.FocusArea, error)
	ListFocusAreas(ctx context.Context, includeArchived bool) ([]*types.FocusArea, error)
	SetFocusAreaActive(ctx context.Context, id string, active bool) error

	// Upvote operations
	HasUpvote(ctx context.Context, entryID, userID string) (bool, error)
	AddUpvote(ctx context.Context, entryID, userID string) (int, error)
	RemoveUpvote(ctx context.Context, entryID, userID string) (int, error)

	// Vector operations
	UpsertVector(ctx context.Context, vector *Vector) error
	DeleteVector(ctx context.Context, namespace, key string) error
	CountVectors(ctx context.Context, namespace string) (int, error)

	// Search operations
	SearchVector(ctx context.Context, namespace string, vector []float32, limit int, minScore float64) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int) ([]TextResult, error)

	// Status operations
	GetStatus(ctx context.Context) (*StoreStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// SortOrder selects the ordering of ListEntries.
type SortOrder string

const (
	SortNewest  SortOrder = "newest"
	SortUpvotes SortOrder = "upvotes"
)

// ListFilter narrows ListEntries.
type ListFilter struct {
	Status      types.Status // Empty matches every status
	OwnerID     string       // Empty matches every owner
	FocusAreaID string       // Empty matches every focus area
	Sort        SortOrder
	Limit       int // 0 means no limit
}

// Vector is a stored embedding keyed by (namespace, key)
type Vector struct {
	Namespace string
	Key       string
	Vector    []float32
	Provider  string
	Model     string
	CreatedAt time.Time
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	Key             string
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	EntryID   string
	BM25Score float64
}

// StoreStatus contains statistics about the store
type StoreStatus struct {
	EntriesCount       int
	PendingCount       int
	ActiveCount        int
	MissingEmbeddings  int
	VectorsCount       int
	TeamsCount         int
	FocusAreasCount    int
	DatabaseSizeMB     float64
	BuildMode          string
	VectorAcceleration bool
}
