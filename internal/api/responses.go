package api

import (
	"time"

	"github.com/donovan0902/project-hunt/pkg/types"
)

// EntryResponse is the JSON form of an entry.
type EntryResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	TeamID       string    `json:"team_id,omitempty"`
	Name         string    `json:"name"`
	Summary      string    `json:"summary"`
	Headline     string    `json:"headline,omitempty"`
	Link         string    `json:"link,omitempty"`
	Readiness    string    `json:"readiness"`
	FocusAreaIDs []string  `json:"focus_area_ids"`
	Status       string    `json:"status"`
	HasEmbedding bool      `json:"has_embedding"`
	Upvotes      int       `json:"upvotes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newEntryResponse(e *types.Entry) EntryResponse {
	return EntryResponse{
		ID:           e.ID,
		OwnerID:      e.OwnerID,
		TeamID:       e.TeamID,
		Name:         e.Name,
		Summary:      e.Summary,
		Headline:     e.Headline,
		Link:         e.Link,
		Readiness:    string(e.Readiness),
		FocusAreaIDs: focusAreaIDs(e),
		Status:       string(e.Status),
		HasEmbedding: e.HasEmbedding(),
		Upvotes:      e.Upvotes,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func focusAreaIDs(e *types.Entry) []string {
	if e.FocusAreaIDs == nil {
		return []string{}
	}
	return e.FocusAreaIDs
}

func newEntryList(entries []*types.Entry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = newEntryResponse(e)
	}
	return out
}

// ListResponse wraps a list of entries.
type ListResponse struct {
	Entries []EntryResponse `json:"entries"`
	Total   int             `json:"total"`
}

// SubmissionResponse is returned by POST /api/v1/entries.
type SubmissionResponse struct {
	EntryID string             `json:"entry_id"`
	Status  string             `json:"status"`
	Similar []types.SimilarHit `json:"similar"`
}

// SimilarResponse wraps a similarity report.
type SimilarResponse struct {
	Similar []types.SimilarHit `json:"similar"`
}

func newSimilarResponse(report *types.SimilarityReport) SimilarResponse {
	if report == nil || report.Hits == nil {
		return SimilarResponse{Similar: []types.SimilarHit{}}
	}
	return SimilarResponse{Similar: report.Hits}
}

// SearchResultResponse is one hybrid search hit.
type SearchResultResponse struct {
	Rank  int           `json:"rank"`
	Score float64       `json:"score"`
	Entry EntryResponse `json:"entry"`
}

// SearchResponse is returned by GET /api/v1/search.
type SearchResponse struct {
	Query   string                 `json:"query"`
	Results []SearchResultResponse `json:"results"`
	Total   int                    `json:"total"`
}

// BackfillResponse is returned by POST /api/v1/entries/:id/backfill.
type BackfillResponse struct {
	EntryID      string `json:"entry_id"`
	EmbeddingKey string `json:"embedding_key"`
}

// TeamResponse is the JSON form of a team.
type TeamResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newTeamResponse(t *types.Team) TeamResponse {
	return TeamResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}

// FocusAreaResponse is the JSON form of a focus area.
type FocusAreaResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Group       string    `json:"group"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

func newFocusAreaResponse(a *types.FocusArea) FocusAreaResponse {
	return FocusAreaResponse{
		ID:          a.ID,
		Name:        a.Name,
		Group:       a.Group,
		Description: a.Description,
		Active:      a.Active,
		CreatedAt:   a.CreatedAt,
	}
}

// FocusAreaListResponse is returned by GET /api/v1/focus-areas. Groups holds
// the same areas keyed by group.
type FocusAreaListResponse struct {
	FocusAreas []FocusAreaResponse            `json:"focus_areas"`
	Groups     map[string][]FocusAreaResponse `json:"groups"`
	Total      int                            `json:"total"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	Entries           int    `json:"entries"`
	Active            int    `json:"active"`
	Pending           int    `json:"pending"`
	MissingEmbeddings int    `json:"missing_embeddings"`
	Vectors           int    `json:"vectors"`
}
