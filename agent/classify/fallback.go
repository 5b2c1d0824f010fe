package classify

import (
	"regexp"
	"strings"

	contractx "github.com/vrtravels/tour-concierge/agent/contract"
	sessionx "github.com/vrtravels/tour-concierge/agent/session"
)

var (
	tourIDPattern   = regexp.MustCompile(`(?i)[a-f0-9-]{36}`)
	stopwordPattern = regexp.MustCompile(`(?i)search|find|for|tours?`)
)

// TourID returns the first 36-character id-shaped token in message, "" if none.
func TourID(message string) string {
	return tourIDPattern.FindString(message)
}

// StripSearchStopwords removes the search stopwords from query and trims the
// result. Callers supply their own default for an emptied query.
func StripSearchStopwords(query string) string {
	return strings.TrimSpace(stopwordPattern.ReplaceAllString(query, ""))
}

// Fallback is the deterministic classifier used when the oracle is
// unavailable or unparseable. Rules are evaluated top to bottom, first match
// wins; it never calls the oracle.
func Fallback(query string, sess *sessionx.Session) contractx.Intent {
	lower := strings.ToLower(strings.TrimSpace(query))

	if tourID := TourID(query); tourID != "" {
		return contractx.Intent{
			Kind:         contractx.IntentDirectTourID,
			TourID:       tourID,
			Confidence:   0.9,
			ToolToCall:   contractx.ToolTourDetails,
			Parameters:   map[string]any{},
			ResponseType: contractx.ResponseToolCall,
			Message:      "Tour ID detected in query",
		}
	}

	if strings.Contains(lower, "hello") || strings.Contains(lower, "hi") || strings.Contains(lower, "hey") {
		return contractx.Intent{
			Kind:         contractx.IntentGreeting,
			Confidence:   0.95,
			Parameters:   map[string]any{},
			ResponseType: contractx.ResponseDirect,
			Message:      "Greeting detected",
		}
	}

	if strings.Contains(lower, "search") || strings.Contains(lower, "find") {
		term := StripSearchStopwords(query)
		if term == "" {
			term = "tours"
		}
		return contractx.Intent{
			Kind:         contractx.IntentSearch,
			Confidence:   0.85,
			ToolToCall:   contractx.ToolSearchTours,
			Parameters:   map[string]any{"query": term},
			ResponseType: contractx.ResponseToolCall,
			Message:      "Search request detected",
		}
	}

	if strings.Contains(lower, "track") || strings.Contains(lower, "status") {
		intent := contractx.Intent{
			Kind:         contractx.IntentTracking,
			Confidence:   0.8,
			ToolToCall:   contractx.ToolTourTracking,
			Parameters:   map[string]any{},
			ResponseType: contractx.ResponseDirect,
			Message:      "Tracking request detected",
		}
		if sess != nil && sess.CurrentTourID != "" {
			intent.TourID = sess.CurrentTourID
			intent.ResponseType = contractx.ResponseToolCall
		}
		return intent
	}

	if strings.Contains(lower, "details") || strings.Contains(lower, "tour") {
		intent := contractx.Intent{
			Kind:         contractx.IntentTourDetails,
			Confidence:   0.8,
			Parameters:   map[string]any{},
			ResponseType: contractx.ResponseDirect,
			Message:      "Tour details request detected",
		}
		if sess != nil && sess.CurrentTourID != "" {
			intent.TourID = sess.CurrentTourID
			intent.ToolToCall = contractx.ToolTourDetails
			intent.ResponseType = contractx.ResponseToolCall
		}
		return intent
	}

	if strings.Contains(lower, "thank") {
		return contractx.Intent{
			Kind:         contractx.IntentThanks,
			Confidence:   0.95,
			Parameters:   map[string]any{},
			ResponseType: contractx.ResponseDirect,
			Message:      "Thanks detected",
		}
	}

	return contractx.Intent{
		Kind:         contractx.IntentHelp,
		Confidence:   0.7,
		Parameters:   map[string]any{},
		ResponseType: contractx.ResponseDirect,
		Message:      "Default to help response",
	}
}
