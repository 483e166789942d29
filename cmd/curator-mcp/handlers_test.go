package main

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func searchRequest(args map[string]any) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Name = "search_emails"
	request.Params.Arguments = args
	return request
}

func TestSearchCriteriaDecodesSizeRange(t *testing.T) {
	// JSON numbers arrive as float64 through the protocol layer.
	criteria := searchCriteriaFrom(searchRequest(map[string]any{
		"query":    "invoice",
		"size_min": float64(1024),
		"size_max": float64(1048576),
	}))

	if criteria.Query != "invoice" {
		t.Fatalf("Expected query passed through, got %q", criteria.Query)
	}
	if criteria.SizeMin != 1024 {
		t.Fatalf("Expected size_min 1024, got %d", criteria.SizeMin)
	}
	if criteria.SizeMax != 1048576 {
		t.Fatalf("Expected size_max 1048576, got %d", criteria.SizeMax)
	}
	if criteria.Limit != 50 {
		t.Fatalf("Expected default limit 50, got %d", criteria.Limit)
	}
}

func TestSearchCriteriaTriStateFlags(t *testing.T) {
	// Absent flags stay nil so the store does not filter on them.
	criteria := searchCriteriaFrom(searchRequest(map[string]any{"query": "x"}))
	if criteria.HasAttachments != nil || criteria.Archived != nil {
		t.Fatal("Expected unset flags to stay nil")
	}
	if criteria.SizeMin != 0 || criteria.SizeMax != 0 {
		t.Fatal("Expected unset size bounds to stay zero")
	}

	criteria = searchCriteriaFrom(searchRequest(map[string]any{
		"query":           "x",
		"has_attachments": true,
		"archived":        false,
	}))
	if criteria.HasAttachments == nil || !*criteria.HasAttachments {
		t.Fatal("Expected has_attachments true")
	}
	if criteria.Archived == nil || *criteria.Archived {
		t.Fatal("Expected archived false, not unset")
	}
}
