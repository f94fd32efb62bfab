package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donovan0902/project-hunt/internal/embedder"
	"github.com/donovan0902/project-hunt/internal/index"
	"github.com/donovan0902/project-hunt/internal/ranker"
	"github.com/donovan0902/project-hunt/internal/storage"
	"github.com/donovan0902/project-hunt/internal/submission"
)

const (
	mapName    = "Trail Map Sharing"
	mapSummary = "Share annotated hiking trail maps with elevation profiles and water sources marked"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	vec := index.NewSQLiteVectorIndex(store, embedder.NewLocalProvider(100))
	lex := index.NewFTSLexicalIndex(store)
	rk, err := ranker.New(store, vec, lex, ranker.Options{})
	require.NoError(t, err)

	coord := submission.New(store, vec, rk, submission.Config{MinSummaryLength: 20}, nil)
	s, err := NewServer(coord, nil, nil)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, caller string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(HeaderCallerID, caller)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func publish(t *testing.T, s *Server, caller, name, summary string) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/entries", caller, map[string]string{
		"name":    name,
		"summary": summary,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[SubmissionResponse](t, rec).EntryID

	rec = do(t, s, http.MethodPost, "/api/v1/entries/"+id+"/confirm", caller, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

func TestNewServerRequiresCoordinator(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[HealthResponse](t, rec).Status)

	rec = do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "projecthunt_http_requests_total")
}

func TestEntryLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := publish(t, s, "alice", mapName, mapSummary)

	rec := do(t, s, http.MethodGet, "/api/v1/entries/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decodeBody[EntryResponse](t, rec)
	assert.Equal(t, "active", entry.Status)
	assert.True(t, entry.HasEmbedding)

	rec = do(t, s, http.MethodGet, "/api/v1/entries?sort=newest", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[ListResponse](t, rec).Total)

	rec = do(t, s, http.MethodGet, "/api/v1/search?q=hiking+trail", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	search := decodeBody[SearchResponse](t, rec)
	require.NotEmpty(t, search.Results)
	assert.Equal(t, id, search.Results[0].Entry.ID)
	assert.Equal(t, 1, search.Results[0].Rank)
}

func TestSubmitReportsSimilar(t *testing.T) {
	s := newTestServer(t)
	id := publish(t, s, "alice", mapName, mapSummary)

	rec := do(t, s, http.MethodPost, "/api/v1/entries", "bob", map[string]string{
		"name":    "Trail Map Share",
		"summary": "Share annotated hiking trail maps with elevation profiles and water sources",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	sub := decodeBody[SubmissionResponse](t, rec)
	assert.Equal(t, "pending", sub.Status)
	require.Len(t, sub.Similar, 1)
	assert.Equal(t, id, sub.Similar[0].EntryID)
}

func TestPendingVisibility(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/entries", "alice", map[string]string{
		"name":    mapName,
		"summary": mapSummary,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[SubmissionResponse](t, rec).EntryID

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/entries/"+id, "alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/entries/"+id, "bob", nil).Code)

	rec = do(t, s, http.MethodGet, "/api/v1/users/alice/entries", "alice", nil)
	assert.Equal(t, 1, decodeBody[ListResponse](t, rec).Total)
	rec = do(t, s, http.MethodGet, "/api/v1/users/alice/entries", "bob", nil)
	assert.Equal(t, 0, decodeBody[ListResponse](t, rec).Total)

	rec = do(t, s, http.MethodPost, "/api/v1/entries/"+id+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/entries/"+id, "alice", nil).Code)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	id := publish(t, s, "alice", mapName, mapSummary)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   interface{}
		want   int
		kind   string
	}{
		{"no caller", http.MethodPost, "/api/v1/entries", "", map[string]string{"name": mapName, "summary": mapSummary}, http.StatusUnauthorized, "unauthorized"},
		{"short summary", http.MethodPost, "/api/v1/entries", "bob", map[string]string{"name": "X", "summary": "short"}, http.StatusBadRequest, "validation_error"},
		{"unknown entry", http.MethodGet, "/api/v1/entries/missing", "alice", nil, http.StatusNotFound, "not_found"},
		{"confirm active", http.MethodPost, "/api/v1/entries/" + id + "/confirm", "alice", nil, http.StatusConflict, "invalid_state"},
		{"cancel by stranger", http.MethodPost, "/api/v1/entries/" + id + "/cancel", "bob", nil, http.StatusForbidden, "forbidden"},
		{"edit by stranger", http.MethodPatch, "/api/v1/entries/" + id, "bob", map[string]string{"name": mapName, "summary": mapSummary}, http.StatusForbidden, "forbidden"},
		{"blank search", http.MethodGet, "/api/v1/search?q=", "", nil, http.StatusBadRequest, "validation_error"},
		{"unknown sort", http.MethodGet, "/api/v1/entries?sort=oldest", "", nil, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.caller, tt.body)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decodeBody[ErrorResponse](t, rec).Kind)
		})
	}
}

func TestInvalidLimit(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/v1/entries?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditAndSimilar(t *testing.T) {
	s := newTestServer(t)
	id := publish(t, s, "alice", mapName, mapSummary)

	rec := do(t, s, http.MethodPatch, "/api/v1/entries/"+id, "alice", map[string]string{
		"name":    "Trail Map Sharing",
		"summary": "Share annotated hiking trail maps with elevation profiles, water sources and campsites",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decodeBody[SimilarResponse](t, rec).Similar)

	rec = do(t, s, http.MethodPost, "/api/v1/similar", "", SimilarRequest{
		Name:    mapName,
		Summary: "Share annotated hiking trail maps with elevation profiles, water sources and campsites",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	similar := decodeBody[SimilarResponse](t, rec).Similar
	require.Len(t, similar, 1)
	assert.Equal(t, id, similar[0].EntryID)

	rec = do(t, s, http.MethodPost, "/api/v1/similar", "", SimilarRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPartialEditKeepsOmittedFields(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/entries", "alice", map[string]string{
		"name":      mapName,
		"headline":  "Maps for every trail",
		"summary":   mapSummary,
		"link":      "https://maps.example.com",
		"readiness": "ready_to_use",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[SubmissionResponse](t, rec).EntryID

	rec = do(t, s, http.MethodPatch, "/api/v1/entries/"+id, "alice", map[string]string{
		"summary": "Share annotated hiking trail maps with elevation profiles, water sources and campsites",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/entries/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decodeBody[EntryResponse](t, rec)
	assert.Equal(t, mapName, entry.Name)
	assert.Equal(t, "Maps for every trail", entry.Headline)
	assert.Equal(t, "https://maps.example.com", entry.Link)
	assert.Equal(t, "ready_to_use", entry.Readiness)
	assert.Contains(t, entry.Summary, "campsites")
}

func TestSearchExclude(t *testing.T) {
	s := newTestServer(t)
	first := publish(t, s, "alice", mapName, mapSummary)
	second := publish(t, s, "bob", "Trail Map Share", "Share annotated hiking trail maps with elevation profiles and water sources")

	rec := do(t, s, http.MethodGet, "/api/v1/search?q=hiking+trail&exclude="+first, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	search := decodeBody[SearchResponse](t, rec)
	require.NotEmpty(t, search.Results)
	for _, r := range search.Results {
		assert.NotEqual(t, first, r.Entry.ID)
	}
	assert.Equal(t, second, search.Results[0].Entry.ID)
}

func TestFocusAreas(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/focus-areas", "alice", FocusAreaRequest{Name: "Outdoors", Group: "Leisure", Description: "Hiking and camping"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	area := decodeBody[FocusAreaResponse](t, rec)
	assert.Equal(t, "Outdoors", area.Name)
	assert.True(t, area.Active)

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodPost, "/api/v1/focus-areas", "", FocusAreaRequest{Name: "x", Group: "y"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/focus-areas", "alice", FocusAreaRequest{Name: "x"}).Code)

	rec = do(t, s, http.MethodGet, "/api/v1/focus-areas", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody[FocusAreaListResponse](t, rec)
	assert.Equal(t, 1, listed.Total)
	require.Len(t, listed.Groups["Leisure"], 1)
	assert.Equal(t, area.ID, listed.Groups["Leisure"][0].ID)

	rec = do(t, s, http.MethodPost, "/api/v1/entries", "alice", map[string]interface{}{
		"name":           mapName,
		"summary":        mapSummary,
		"focus_area_ids": []string{area.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[SubmissionResponse](t, rec).EntryID
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/entries/"+id+"/confirm", "alice", nil).Code)
	publish(t, s, "bob", "Sourdough Timer", "Tracks starter feeding times and proofing windows for home bakers")

	rec = do(t, s, http.MethodGet, "/api/v1/entries?focus_area="+area.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ListResponse](t, rec)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, []string{area.ID}, list.Entries[0].FocusAreaIDs)

	rec = do(t, s, http.MethodPost, "/api/v1/entries", "alice", map[string]interface{}{
		"name":           mapName,
		"summary":        mapSummary,
		"focus_area_ids": []string{"missing"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/focus-areas/missing", "", nil).Code)

	rec = do(t, s, http.MethodPost, "/api/v1/focus-areas/"+area.ID+"/archive", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeBody[FocusAreaResponse](t, rec).Active)
	rec = do(t, s, http.MethodGet, "/api/v1/focus-areas", "", nil)
	assert.Equal(t, 0, decodeBody[FocusAreaListResponse](t, rec).Total)

	// archived areas stay on entries already tagged with them
	rec = do(t, s, http.MethodGet, "/api/v1/entries?focus_area="+area.ID, "", nil)
	assert.Equal(t, 1, decodeBody[ListResponse](t, rec).Total)

	rec = do(t, s, http.MethodPost, "/api/v1/focus-areas/"+area.ID+"/reactivate", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[FocusAreaResponse](t, rec).Active)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodPost, "/api/v1/focus-areas/"+area.ID+"/archive", "", nil).Code)
}

func TestBackfillAndUpvote(t *testing.T) {
	s := newTestServer(t)
	id := publish(t, s, "alice", mapName, mapSummary)

	rec := do(t, s, http.MethodPost, "/api/v1/entries/"+id+"/backfill", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decodeBody[BackfillResponse](t, rec).EmbeddingKey)

	rec = do(t, s, http.MethodPost, "/api/v1/entries/"+id+"/upvote", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `"upvoted":true`), body)
	assert.True(t, strings.Contains(body, `"count":1`), body)

	rec = do(t, s, http.MethodPost, "/api/v1/entries/"+id+"/upvote", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"upvoted":false`)

	rec = do(t, s, http.MethodPost, "/api/v1/entries/"+id+"/upvote", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTeams(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/teams", "alice", TeamRequest{Name: "Trailblazers"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	team := decodeBody[TeamResponse](t, rec)
	assert.Equal(t, "Trailblazers", team.Name)

	rec = do(t, s, http.MethodPatch, "/api/v1/teams/"+team.ID, "bob", TeamRequest{Name: "Pathfinders"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pathfinders", decodeBody[TeamResponse](t, rec).Name)

	rec = do(t, s, http.MethodGet, "/api/v1/teams/"+team.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/teams/missing", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/teams", "alice", TeamRequest{}).Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
