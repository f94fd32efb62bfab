// Package mcp implements the Model Context Protocol (MCP) server for Project Hunt.
//
// The server exposes the submission workflow and search to MCP clients:
//   - submit_project: Create a pending listing and report near-duplicates
//   - confirm_project: Publish a pending listing
//   - cancel_project: Discard a pending listing
//   - edit_project: Change some of a listing's fields and re-check similarity
//   - backfill_embedding: Embed one listing, or every listing missing a vector
//   - find_similar_projects: Near-duplicate check for arbitrary text or fields
//   - search_projects: Hybrid vector + keyword search over published listings
//   - list_focus_areas: Focus areas a listing can be tagged with
//   - get_status: Store and index statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. Stdout is reserved for
// protocol messages, so all logging goes to stderr.
//
//	projecthunt mcp
//
// # Tool: submit_project
//
//	Request:
//	{
//	  "name": "submit_project",
//	  "arguments": {
//	    "caller_id": "user-42",
//	    "name": "Brew Log",
//	    "summary": "Track mash temperatures and gravity readings ..."
//	  }
//	}
//
//	Response:
//	{
//	  "entry_id": "3f8a...",
//	  "status": "pending",
//	  "similar": [
//	    {"entry_id": "91c2...", "name": "Brew Logger", "score": 0.87}
//	  ]
//	}
//
// The caller reviews the similar listings and then either confirms or cancels
// the pending entry.
//
// # Error Handling
//
// Handlers return *MCPError values carrying a JSON-RPC code:
//   - -32602: Invalid params (missing arguments, validation failures)
//   - -32603: Internal error
//   - -32001: Entry not found
//   - -32002: caller_id missing
//   - -32003: Caller does not own the entry
//   - -32004: Entry is in the wrong status for the operation
//   - -32005: Vector or keyword index unavailable
//   - -32006: A backfill run is already in progress
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "projecthunt": {
//	      "command": "/usr/local/bin/projecthunt",
//	      "args": ["mcp"],
//	      "env": {
//	        "PROJECTHUNT_EMBEDDER_PROVIDER": "local"
//	      }
//	    }
//	  }
//	}
package mcp
