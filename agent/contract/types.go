package contract

import "strings"

// IntentKind discriminates the classifier's output. The set is closed: the
// classifier boundary rejects anything outside it before handlers run.
type IntentKind string

const (
	IntentGreeting         IntentKind = "greeting"
	IntentThanks           IntentKind = "thanks"
	IntentHelp             IntentKind = "help"
	IntentTourDetails      IntentKind = "tour_details"
	IntentTracking         IntentKind = "tracking"
	IntentSearch           IntentKind = "search"
	IntentDirectTourID     IntentKind = "direct_tour_id"
	IntentSpecificQuestion IntentKind = "specific_question"
	IntentUnknown          IntentKind = "unknown"
)

type ResponseType string

const (
	ResponseDirect   ResponseType = "direct"
	ResponseToolCall ResponseType = "tool_call"
)

// Tool names exposed by the tour backend.
const (
	ToolTourDetails    = "get-tour-details"
	ToolTourTracking   = "get-tour-tracking"
	ToolSearchTours    = "search-tours"
	ToolTestConnection = "test-connection"
)

// Intent is the typed result of query analysis. JSON tags match the schema the
// oracle is instructed to emit.
type Intent struct {
	Kind         IntentKind     `json:"intent"`
	TourID       string         `json:"tourId,omitempty"`
	Confidence   float64        `json:"confidence"`
	ToolToCall   string         `json:"toolToCall,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	ResponseType ResponseType   `json:"responseType"`
	Message      string         `json:"message,omitempty"`
}

// ParamString returns a string parameter by key, "" when absent or non-string.
func (i Intent) ParamString(key string) string {
	if i.Parameters == nil {
		return ""
	}
	v, _ := i.Parameters[key].(string)
	return v
}

// ContentBlock is one entry of a tool result payload.
type ContentBlock struct {
	Kind string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolResult is the structured response of a tool invocation, returned by the
// gateway unchanged.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// Text concatenates the text-kind blocks, newline-joined and trimmed. An
// empty result yields the "no results" sentinel.
func (r ToolResult) Text() string {
	var b []string
	for _, block := range r.Content {
		if block.Kind == "text" && block.Text != "" {
			b = append(b, block.Text)
		}
	}
	text := ""
	if len(b) > 0 {
		text = strings.TrimSpace(strings.Join(b, "\n"))
	}
	if text == "" {
		return "No results found."
	}
	return text
}
