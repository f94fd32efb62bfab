package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func callerProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Opaque id of the user making the call",
	}
}

func entryIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Id of the project entry",
	}
}

// fieldProperties are the editable listing fields shared by submit and edit
func fieldProperties() map[string]interface{} {
	return map[string]interface{}{
		"name": map[string]interface{}{
			"type":        "string",
			"description": "Project name",
		},
		"summary": map[string]interface{}{
			"type":        "string",
			"description": "What the project does and who it is for",
		},
		"headline": map[string]interface{}{
			"type":        "string",
			"description": "Optional one-line pitch",
		},
		"link": map[string]interface{}{
			"type":        "string",
			"description": "Optional absolute http(s) URL",
		},
		"team_id": map[string]interface{}{
			"type":        "string",
			"description": "Optional id of the owning team",
		},
		"readiness": map[string]interface{}{
			"type":        "string",
			"description": "How usable the project is",
			"enum":        []string{"in_progress", "ready_to_use"},
			"default":     "in_progress",
		},
		"focus_area_ids": map[string]interface{}{
			"type":        "array",
			"description": "Optional ids of focus areas from list_focus_areas",
			"items":       map[string]interface{}{"type": "string"},
		},
	}
}

// submitProjectTool returns the tool definition for submit_project
func submitProjectTool() mcp.Tool {
	props := fieldProperties()
	props["caller_id"] = callerProperty()
	return mcp.Tool{
		Name:        "submit_project",
		Description: "Create a pending project listing and report similar published projects. Confirm or cancel it afterwards.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"caller_id", "name", "summary"},
		},
	}
}

// confirmProjectTool returns the tool definition for confirm_project
func confirmProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "confirm_project",
		Description: "Publish a pending project listing",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"caller_id": callerProperty(),
				"entry_id":  entryIDProperty(),
			},
			Required: []string{"caller_id", "entry_id"},
		},
	}
}

// cancelProjectTool returns the tool definition for cancel_project
func cancelProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cancel_project",
		Description: "Discard a pending project listing and its embedding",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"caller_id": callerProperty(),
				"entry_id":  entryIDProperty(),
			},
			Required: []string{"caller_id", "entry_id"},
		},
	}
}

// editProjectTool returns the tool definition for edit_project
func editProjectTool() mcp.Tool {
	props := fieldProperties()
	props["caller_id"] = callerProperty()
	props["entry_id"] = entryIDProperty()
	return mcp.Tool{
		Name:        "edit_project",
		Description: "Change some fields of a project listing, re-embed it and report similar projects. Omitted fields keep their current value",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"caller_id", "entry_id"},
		},
	}
}

// backfillEmbeddingTool returns the tool definition for backfill_embedding
func backfillEmbeddingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "backfill_embedding",
		Description: "Attach a missing embedding to one entry, or to every entry when entry_id is omitted",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entry_id": entryIDProperty(),
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true and entry_id is omitted, re-embed every entry",
					"default":     false,
				},
			},
		},
	}
}

// findSimilarProjectsTool returns the tool definition for find_similar_projects
func findSimilarProjectsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_similar_projects",
		Description: "Find published projects that look like near-duplicates of the given text or draft fields",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Free text to compare. Ignored when name or summary is given",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Draft project name",
				},
				"headline": map[string]interface{}{
					"type":        "string",
					"description": "Draft headline",
				},
				"summary": map[string]interface{}{
					"type":        "string",
					"description": "Draft summary",
				},
				"exclude_id": map[string]interface{}{
					"type":        "string",
					"description": "Entry to leave out of the results, usually the one being edited",
				},
			},
		},
	}
}

// searchProjectsTool returns the tool definition for search_projects
func searchProjectsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_projects",
		Description: "Search published projects with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"exclude_id": map[string]interface{}{
					"type":        "string",
					"description": "Entry to leave out of the results",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// listFocusAreasTool returns the tool definition for list_focus_areas
func listFocusAreasTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_focus_areas",
		Description: "List the active focus areas projects can be tagged with, with their ids grouped by group",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Entry, embedding and index statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
