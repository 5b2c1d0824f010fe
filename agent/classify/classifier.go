// Package classify turns free text plus session context into a typed Intent.
// The completion oracle does the heavy lifting; a deterministic rule set takes
// over whenever the oracle fails or returns something unparseable, so
// classification itself never errors out to the caller.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/vrtravels/tour-concierge/agent/contract"
	sessionx "github.com/vrtravels/tour-concierge/agent/session"
)

const (
	classifyMaxTokens   = 500
	classifyTemperature = 0.1

	smartMaxTokens = 400
)

const defaultResponse = `Available commands:
• "details [tour-id]" - Get tour details
• "search [keyword]" - Find tours
• "track [tour-id]" - Tour tracking
• "help" - Show all options

Sample: details 39d11c40-7dba-11f0-a387-8508a0009d76`

type Classifier struct {
	completer contractx.Completer
	tools     []string
}

func New(completer contractx.Completer, tools []string) *Classifier {
	if len(tools) == 0 {
		tools = []string{
			contractx.ToolTourDetails,
			contractx.ToolTourTracking,
			contractx.ToolSearchTours,
		}
	}
	return &Classifier{completer: completer, tools: tools}
}

// Classify analyzes one query. It always produces an Intent: oracle first,
// deterministic rules when the oracle path fails in any way.
func (c *Classifier) Classify(ctx context.Context, query string, sess *sessionx.Session) contractx.Intent {
	reply, err := c.completer.Complete(ctx, contractx.CompletionRequest{
		System:      c.systemPrompt(sess),
		User:        query,
		MaxTokens:   classifyMaxTokens,
		Temperature: classifyTemperature,
	})
	if err != nil {
		log.Warn().Err(err).Msg("intent analysis failed, using rule fallback")
		return Fallback(query, sess)
	}

	intent, err := parseIntent(reply)
	if err != nil {
		log.Warn().Err(err).Msg("intent response unparseable, using rule fallback")
		return Fallback(query, sess)
	}
	return intent
}

func (c *Classifier) systemPrompt(sess *sessionx.Session) string {
	currentTourID := "none"
	awaiting := false
	if sess != nil {
		if sess.CurrentTourID != "" {
			currentTourID = sess.CurrentTourID
		}
		awaiting = sess.AwaitingTourID
	}

	return fmt.Sprintf(`You are a query analyzer for a tour management system.
Analyze the user's query and return ONLY valid JSON in this exact format:

{
  "intent": "greeting|tour_details|tracking|search|help|thanks|direct_tour_id|specific_question",
  "tourId": "tour ID if found or null",
  "confidence": 0.95,
  "toolToCall": "get-tour-details|get-tour-tracking|search-tours|null",
  "parameters": {"query": "search term if search intent"},
  "responseType": "direct|tool_call",
  "message": "brief explanation of analysis"
}

IMPORTANT: Return ONLY JSON, no other text, no markdown, no code blocks.

Available tools: %s.

Session context: currentTourId=%s, awaitingTourId=%t

Query analysis examples:
- "hello" → {"intent": "greeting", "tourId": null, "confidence": 0.95, "toolToCall": null, "parameters": {}, "responseType": "direct", "message": "greeting detected"}
- "tour abc-123" → {"intent": "tour_details", "tourId": "abc-123", "confidence": 0.98, "toolToCall": "get-tour-details", "parameters": {}, "responseType": "tool_call", "message": "tour details request with ID"}
- "search VR tours" → {"intent": "search", "tourId": null, "confidence": 0.92, "toolToCall": "search-tours", "parameters": {"query": "VR"}, "responseType": "tool_call", "message": "search request for VR tours"}
- "39d11c40-7dba-11f0-a387-8508a0009d76" → {"intent": "direct_tour_id", "tourId": "39d11c40-7dba-11f0-a387-8508a0009d76", "confidence": 0.99, "toolToCall": "get-tour-details", "parameters": {}, "responseType": "tool_call", "message": "direct tour ID provided"}`,
		strings.Join(c.tools, ", "), currentTourID, awaiting)
}

// parseIntent pulls the first balanced {...} substring out of the oracle's
// reply (the model sometimes wraps valid JSON in prose), decodes it, and
// validates the result at this boundary. Nothing untyped crosses it.
func parseIntent(reply string) (contractx.Intent, error) {
	raw := firstJSONObject(reply)
	if raw == "" {
		return contractx.Intent{}, fmt.Errorf("%w: no JSON object in reply", contractx.ErrSchemaViolation)
	}

	var intent contractx.Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return contractx.Intent{}, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}

	// The oracle is told to emit the literal string "null" for absent tools.
	if intent.ToolToCall == "null" {
		intent.ToolToCall = ""
	}
	if intent.TourID == "null" {
		intent.TourID = ""
	}

	if err := validate(intent); err != nil {
		return contractx.Intent{}, err
	}
	return intent, nil
}

func validate(intent contractx.Intent) error {
	switch intent.Kind {
	case contractx.IntentGreeting, contractx.IntentThanks, contractx.IntentHelp,
		contractx.IntentTourDetails, contractx.IntentTracking, contractx.IntentSearch,
		contractx.IntentDirectTourID, contractx.IntentSpecificQuestion, contractx.IntentUnknown:
	default:
		return fmt.Errorf("%w: unknown intent %q", contractx.ErrSchemaViolation, intent.Kind)
	}

	switch intent.ResponseType {
	case contractx.ResponseDirect, contractx.ResponseToolCall:
	default:
		return fmt.Errorf("%w: unknown responseType %q", contractx.ErrSchemaViolation, intent.ResponseType)
	}

	if intent.ResponseType == contractx.ResponseToolCall && intent.ToolToCall == "" {
		return fmt.Errorf("%w: tool_call response without toolToCall", contractx.ErrSchemaViolation)
	}
	if intent.Kind == contractx.IntentDirectTourID && TourID(intent.TourID) == "" {
		return fmt.Errorf("%w: direct_tour_id without an id-shaped tourId", contractx.ErrSchemaViolation)
	}
	return nil
}

func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// SmartFallback asks the oracle a looser question when no handler matched the
// classified intent. On oracle failure it returns the static command list.
func (c *Classifier) SmartFallback(ctx context.Context, query string, sess *sessionx.Session) string {
	currentTourID := "none"
	if sess != nil && sess.CurrentTourID != "" {
		currentTourID = sess.CurrentTourID
	}

	system := fmt.Sprintf(`You're a tour assistant. User query doesn't fit standard categories.

Session: tourId=%s

Capabilities: search tours, get details by ID, track tours

Query: %s

Provide brief, helpful response or ask for clarification.`, currentTourID, query)

	reply, err := c.completer.Complete(ctx, contractx.CompletionRequest{
		System:      system,
		User:        query,
		MaxTokens:   smartMaxTokens,
		Temperature: -1,
	})
	if err != nil || strings.TrimSpace(reply) == "" {
		log.Warn().Err(err).Msg("smart fallback failed, using default response")
		return defaultResponse
	}
	return reply
}
