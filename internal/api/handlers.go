package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/storage"
	"github.com/donovan0902/project-hunt/internal/submission"
	"github.com/donovan0902/project-hunt/pkg/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxSearchLimit   = 100
)

var errInvalidLimit = errors.New("limit must be a positive integer")

// SimilarRequest is the request body for POST /api/v1/similar. Either Text or
// the Name/Headline/Summary fields are used.
type SimilarRequest struct {
	Text      string `json:"text"`
	Name      string `json:"name"`
	Headline  string `json:"headline"`
	Summary   string `json:"summary"`
	ExcludeID string `json:"exclude_id"`
}

// TeamRequest is the request body for team create and rename.
type TeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleHealth reports liveness plus store counters.
func (s *Server) handleHealth(c echo.Context) error {
	status, err := s.coord.Status(c.Request().Context())
	if err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:            "ok",
		Entries:           status.EntriesCount,
		Active:            status.ActiveCount,
		Pending:           status.PendingCount,
		MissingEmbeddings: status.MissingEmbeddings,
		Vectors:           status.VectorsCount,
	})
}

func (s *Server) handleCreateEntry(c echo.Context) error {
	var fields types.Fields
	if err := c.Bind(&fields); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sub, err := s.coord.BeginSubmission(c.Request().Context(), fields, callerID(c))
	if err != nil {
		if sub != nil {
			// Stored but not embedded; the client can retry via backfill
			return s.failWithEntry(c, err, sub.EntryID)
		}
		return s.fail(c, err)
	}

	return c.JSON(http.StatusCreated, SubmissionResponse{
		EntryID: sub.EntryID,
		Status:  string(types.StatusPending),
		Similar: newSimilarResponse(sub.Report).Similar,
	})
}

func (s *Server) handleListEntries(c echo.Context) error {
	limit, err := parseLimit(c.QueryParam("limit"), defaultListLimit, maxListLimit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	entries, err := s.coord.List(c.Request().Context(),
		storage.SortOrder(c.QueryParam("sort")), c.QueryParam("focus_area"), limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ListResponse{Entries: newEntryList(entries), Total: len(entries)})
}

func (s *Server) handleGetEntry(c echo.Context) error {
	entry, err := s.coord.Get(c.Request().Context(), c.Param("id"), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newEntryResponse(entry))
}

// handleEditEntry applies a partial edit: members absent from the body keep
// their stored value.
func (s *Server) handleEditEntry(c echo.Context) error {
	var patch types.FieldsPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	report, err := s.coord.EditFields(c.Request().Context(), c.Param("id"), patch, callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newSimilarResponse(report))
}

func (s *Server) handleConfirmEntry(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := s.coord.Confirm(ctx, id, callerID(c)); err != nil {
		return s.fail(c, err)
	}

	entry, err := s.coord.Get(ctx, id, callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newEntryResponse(entry))
}

func (s *Server) handleCancelEntry(c echo.Context) error {
	if err := s.coord.Cancel(c.Request().Context(), c.Param("id"), callerID(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleBackfillEntry(c echo.Context) error {
	id := c.Param("id")
	key, err := s.coord.Backfill(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, BackfillResponse{EntryID: id, EmbeddingKey: key})
}

func (s *Server) handleToggleUpvote(c echo.Context) error {
	res, err := s.coord.ToggleUpvote(c.Request().Context(), c.Param("id"), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleListByOwner(c echo.Context) error {
	entries, err := s.coord.ListByOwner(c.Request().Context(), c.Param("owner"), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ListResponse{Entries: newEntryList(entries), Total: len(entries)})
}

func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("q")
	limit, err := parseLimit(c.QueryParam("limit"), 0, maxSearchLimit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	results, err := s.coord.HybridSearch(c.Request().Context(), query, c.QueryParam("exclude"))
	if err != nil {
		return s.fail(c, err)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]SearchResultResponse, len(results))
	for i, r := range results {
		out[i] = SearchResultResponse{Rank: r.Rank, Score: r.Score, Entry: newEntryResponse(r.Entry)}
	}
	return c.JSON(http.StatusOK, SearchResponse{Query: query, Results: out, Total: len(out)})
}

func (s *Server) handleSimilar(c echo.Context) error {
	var req SimilarRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var (
		report *types.SimilarityReport
		err    error
	)
	ctx := c.Request().Context()
	if req.Name != "" || req.Summary != "" {
		report, err = s.coord.SimilarityForFields(ctx, req.Name, req.Headline, req.Summary, req.ExcludeID)
	} else {
		report, err = s.coord.SimilaritySearch(ctx, req.Text, req.ExcludeID)
	}
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newSimilarResponse(report))
}

func (s *Server) handleCreateTeam(c echo.Context) error {
	var req TeamRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	team, err := s.coord.CreateTeam(c.Request().Context(), req.Name, req.Description, callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, newTeamResponse(team))
}

func (s *Server) handleGetTeam(c echo.Context) error {
	team, err := s.coord.GetTeam(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newTeamResponse(team))
}

func (s *Server) handleRenameTeam(c echo.Context) error {
	var req TeamRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	team, err := s.coord.RenameTeam(c.Request().Context(), c.Param("id"), req.Name, callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newTeamResponse(team))
}

func (s *Server) handleCreateFocusArea(c echo.Context) error {
	var req FocusAreaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	area, err := s.coord.CreateFocusArea(c.Request().Context(), req.Name, req.Group, req.Description, callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, newFocusAreaResponse(area))
}

func (s *Server) handleListFocusAreas(c echo.Context) error {
	areas, err := s.coord.ListFocusAreas(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	out := make([]FocusAreaResponse, len(areas))
	groups := make(map[string][]FocusAreaResponse)
	for group, members := range submission.GroupFocusAreas(areas) {
		groups[group] = make([]FocusAreaResponse, len(members))
		for i, a := range members {
			groups[group][i] = newFocusAreaResponse(a)
		}
	}
	for i, a := range areas {
		out[i] = newFocusAreaResponse(a)
	}
	return c.JSON(http.StatusOK, FocusAreaListResponse{FocusAreas: out, Groups: groups, Total: len(out)})
}

func (s *Server) handleArchiveFocusArea(c echo.Context) error {
	return s.setFocusAreaActive(c, false)
}

func (s *Server) handleReactivateFocusArea(c echo.Context) error {
	return s.setFocusAreaActive(c, true)
}

func (s *Server) setFocusAreaActive(c echo.Context, active bool) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var err error
	if active {
		err = s.coord.ReactivateFocusArea(ctx, id, callerID(c))
	} else {
		err = s.coord.ArchiveFocusArea(ctx, id, callerID(c))
	}
	if err != nil {
		return s.fail(c, err)
	}

	area, err := s.coord.GetFocusArea(ctx, id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newFocusAreaResponse(area))
}

func (s *Server) handleGetFocusArea(c echo.Context) error {
	area, err := s.coord.GetFocusArea(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newFocusAreaResponse(area))
}

// FocusAreaRequest is the request body for POST /api/v1/focus-areas.
type FocusAreaRequest struct {
	Name        string `json:"name"`
	Group       string `json:"group"`
	Description string `json:"description"`
}

// parseLimit parses an optional positive limit capped at max.
func parseLimit(raw string, def, maxLimit int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
