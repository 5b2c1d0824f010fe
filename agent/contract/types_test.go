package contract

import (
	"encoding/json"
	"testing"
)

func TestToolResultText(t *testing.T) {
	t.Parallel()

	result := ToolResult{Content: []ContentBlock{
		{Kind: "text", Text: "line one"},
		{Kind: "image", Text: "ignored"},
		{Kind: "text", Text: "line two"},
	}}
	if got := result.Text(); got != "line one\nline two" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestToolResultTextEmpty(t *testing.T) {
	t.Parallel()

	if got := (ToolResult{}).Text(); got != "No results found." {
		t.Fatalf("unexpected sentinel: %q", got)
	}
	whitespace := ToolResult{Content: []ContentBlock{{Kind: "text", Text: "   "}}}
	if got := whitespace.Text(); got != "No results found." {
		t.Fatalf("unexpected sentinel: %q", got)
	}
}

func TestIntentJSONRoundTrip(t *testing.T) {
	t.Parallel()

	raw := `{"intent": "search", "confidence": 0.92, "toolToCall": "search-tours", "parameters": {"query": "VR"}, "responseType": "tool_call", "message": "ok"}`
	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Kind != IntentSearch {
		t.Fatalf("unexpected kind: %s", intent.Kind)
	}
	if intent.ParamString("query") != "VR" {
		t.Fatalf("unexpected param: %q", intent.ParamString("query"))
	}
	if intent.ParamString("missing") != "" {
		t.Fatal("expected empty string for missing param")
	}
}
