package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/indexer"
	"github.com/donovan0902/project-hunt/internal/submission"
	"github.com/donovan0902/project-hunt/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound           = -32001 // Entry or team does not exist
	ErrorCodeUnauthorized       = -32002 // caller_id missing
	ErrorCodeForbidden          = -32003 // Caller does not own the entry
	ErrorCodeInvalidState       = -32004 // Entry is not in the required status
	ErrorCodeUpstreamFailure    = -32005 // Vector or lexical index failed
	ErrorCodeIndexingInProgress = -32006 // Another reindex run is already active
)

// handleSubmitProject handles the submit_project tool invocation
func (s *Server) handleSubmitProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	sub, err := s.coord.BeginSubmission(ctx, fieldsFromArgs(args), getStringDefault(args, "caller_id", ""))
	if err != nil {
		if sub != nil {
			// The entry exists but has no embedding yet
			s.logger.Warn("submission stored without embedding", zap.String("entry_id", sub.EntryID), zap.Error(err))
			return nil, toMCPError(err, map[string]interface{}{"entry_id": sub.EntryID})
		}
		return nil, toMCPError(err, nil)
	}

	response := map[string]interface{}{
		"entry_id": sub.EntryID,
		"status":   string(types.StatusPending),
		"similar":  similarHits(sub.Report),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleConfirmProject handles the confirm_project tool invocation
func (s *Server) handleConfirmProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, entryID, err := entryArgs(request)
	if err != nil {
		return nil, err
	}

	if err := s.coord.Confirm(ctx, entryID, getStringDefault(args, "caller_id", "")); err != nil {
		return nil, toMCPError(err, nil)
	}

	response := map[string]interface{}{
		"entry_id": entryID,
		"status":   string(types.StatusActive),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCancelProject handles the cancel_project tool invocation
func (s *Server) handleCancelProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, entryID, err := entryArgs(request)
	if err != nil {
		return nil, err
	}

	if err := s.coord.Cancel(ctx, entryID, getStringDefault(args, "caller_id", "")); err != nil {
		return nil, toMCPError(err, nil)
	}

	response := map[string]interface{}{
		"entry_id":  entryID,
		"cancelled": true,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEditProject handles the edit_project tool invocation
func (s *Server) handleEditProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, entryID, err := entryArgs(request)
	if err != nil {
		return nil, err
	}

	patch, err := patchFromArgs(args)
	if err != nil {
		return nil, err
	}

	report, err := s.coord.EditFields(ctx, entryID, patch, getStringDefault(args, "caller_id", ""))
	if err != nil {
		return nil, toMCPError(err, nil)
	}

	response := map[string]interface{}{
		"entry_id": entryID,
		"similar":  similarHits(report),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleBackfillEmbedding handles the backfill_embedding tool invocation
func (s *Server) handleBackfillEmbedding(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	if entryID := getStringDefault(args, "entry_id", ""); entryID != "" {
		key, err := s.coord.Backfill(ctx, entryID)
		if err != nil {
			return nil, toMCPError(err, nil)
		}
		response := map[string]interface{}{
			"entry_id":      entryID,
			"embedding_key": key,
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	stats, err := s.indexer.Run(ctx, &indexer.Config{Force: getBoolDefault(args, "force", false)})
	if errors.Is(err, indexer.ErrAlreadyRunning) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "a backfill is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "backfill failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"entries_processed": stats.EntriesProcessed,
		"entries_skipped":   stats.EntriesSkipped,
		"entries_failed":    stats.EntriesFailed,
		"duration_ms":       stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindSimilarProjects handles the find_similar_projects tool invocation
func (s *Server) handleFindSimilarProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	excludeID := getStringDefault(args, "exclude_id", "")
	name := getStringDefault(args, "name", "")
	summary := getStringDefault(args, "summary", "")

	var (
		report *types.SimilarityReport
		err    error
	)
	if name != "" || summary != "" {
		report, err = s.coord.SimilarityForFields(ctx, name, getStringDefault(args, "headline", ""), summary, excludeID)
	} else {
		report, err = s.coord.SimilaritySearch(ctx, getStringDefault(args, "text", ""), excludeID)
	}
	if err != nil {
		return nil, toMCPError(err, nil)
	}

	response := map[string]interface{}{
		"similar": similarHits(report),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchProjects handles the search_projects tool invocation
func (s *Server) handleSearchProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	results, err := s.coord.HybridSearch(ctx, query, getStringDefault(args, "exclude_id", ""))
	if err != nil {
		return nil, toMCPError(err, nil)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	items := make([]map[string]interface{}, len(results))
	for i, r := range results {
		items[i] = map[string]interface{}{
			"rank":     r.Rank,
			"entry_id": r.Entry.ID,
			"name":     r.Entry.Name,
			"headline": r.Entry.Headline,
			"link":     r.Entry.Link,
			"upvotes":  r.Entry.Upvotes,
			"score":    r.Score,
		}
	}

	response := map[string]interface{}{
		"query":         query,
		"total_results": len(items),
		"results":       items,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListFocusAreas handles the list_focus_areas tool invocation
func (s *Server) handleListFocusAreas(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	areas, err := s.coord.ListFocusAreas(ctx)
	if err != nil {
		return nil, toMCPError(err, nil)
	}

	items := make([]map[string]interface{}, len(areas))
	groups := make(map[string][]string)
	for i, a := range areas {
		items[i] = map[string]interface{}{
			"id":          a.ID,
			"name":        a.Name,
			"group":       a.Group,
			"description": a.Description,
		}
	}
	for group, members := range submission.GroupFocusAreas(areas) {
		for _, a := range members {
			groups[group] = append(groups[group], a.ID)
		}
	}
	response := map[string]interface{}{
		"focus_areas": items,
		"groups":      groups,
		"total":       len(items),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.coord.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"entries_count":      status.EntriesCount,
			"pending_count":      status.PendingCount,
			"active_count":       status.ActiveCount,
			"missing_embeddings": status.MissingEmbeddings,
			"vectors_count":      status.VectorsCount,
			"teams_count":        status.TeamsCount,
			"focus_areas_count":  status.FocusAreasCount,
			"database_size_mb":   fmt.Sprintf("%.2f", status.DatabaseSizeMB),
		},
		"build": map[string]interface{}{
			"mode":                status.BuildMode,
			"vector_acceleration": status.VectorAcceleration,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// entryArgs extracts the argument map and the required entry_id
func entryArgs(request mcp.CallToolRequest) (map[string]interface{}, string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	entryID, ok := args["entry_id"].(string)
	if !ok || entryID == "" {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "entry_id parameter is required", map[string]interface{}{
			"param":  "entry_id",
			"reason": "missing or empty",
		})
	}
	return args, entryID, nil
}

func fieldsFromArgs(args map[string]interface{}) types.Fields {
	return types.Fields{
		Name:         getStringDefault(args, "name", ""),
		Summary:      getStringDefault(args, "summary", ""),
		Headline:     getStringDefault(args, "headline", ""),
		Link:         getStringDefault(args, "link", ""),
		TeamID:       getStringDefault(args, "team_id", ""),
		Readiness:    types.Readiness(getStringDefault(args, "readiness", "")),
		FocusAreaIDs: getStringSlice(args, "focus_area_ids"),
	}
}

// patchFromArgs builds an edit from the keys actually present in args, so
// omitted fields keep their stored value.
func patchFromArgs(args map[string]interface{}) (types.FieldsPatch, error) {
	var patch types.FieldsPatch
	for key, dst := range map[string]**string{
		"name":     &patch.Name,
		"summary":  &patch.Summary,
		"headline": &patch.Headline,
		"link":     &patch.Link,
		"team_id":  &patch.TeamID,
	} {
		raw, present := args[key]
		if !present {
			continue
		}
		v, ok := raw.(string)
		if !ok {
			return patch, newMCPError(ErrorCodeInvalidParams, key+" must be a string", map[string]interface{}{
				"param": key,
			})
		}
		*dst = &v
	}
	if raw, present := args["readiness"]; present {
		v, ok := raw.(string)
		if !ok {
			return patch, newMCPError(ErrorCodeInvalidParams, "readiness must be a string", map[string]interface{}{
				"param": "readiness",
			})
		}
		r := types.Readiness(v)
		patch.Readiness = &r
	}
	if _, present := args["focus_area_ids"]; present {
		ids := getStringSlice(args, "focus_area_ids")
		if ids == nil {
			ids = []string{}
		}
		patch.FocusAreaIDs = &ids
	}
	if patch.IsEmpty() {
		return patch, newMCPError(ErrorCodeInvalidParams, "no fields to edit", nil)
	}
	return patch, nil
}

func similarHits(report *types.SimilarityReport) []types.SimilarHit {
	if report == nil || report.Hits == nil {
		return []types.SimilarHit{}
	}
	return report.Hits
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// toMCPError maps a service error kind to its MCP error code
func toMCPError(err error, data map[string]interface{}) error {
	code := ErrorCodeInternalError
	switch types.KindOf(err) {
	case types.KindNotFound:
		code = ErrorCodeNotFound
	case types.KindUnauthorized:
		code = ErrorCodeUnauthorized
	case types.KindForbidden:
		code = ErrorCodeForbidden
	case types.KindInvalidState:
		code = ErrorCodeInvalidState
	case types.KindValidation:
		code = ErrorCodeInvalidParams
	case types.KindUpstream:
		code = ErrorCodeUpstreamFailure
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["kind"] = types.KindOf(err).String()
	return newMCPError(code, err.Error(), data)
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a list of strings, skipping non-string items
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
