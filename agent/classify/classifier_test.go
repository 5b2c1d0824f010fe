package classify

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/vrtravels/tour-concierge/agent/contract"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	last  contractx.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req contractx.CompletionRequest) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

func TestClassifyParsesOracleReply(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{
		reply: `{"intent": "search", "tourId": null, "confidence": 0.92, "toolToCall": "search-tours", "parameters": {"query": "VR"}, "responseType": "tool_call", "message": "search request"}`,
	}
	c := New(completer, nil)

	intent := c.Classify(context.Background(), "search VR tours", nil)
	if intent.Kind != contractx.IntentSearch {
		t.Fatalf("unexpected intent: %s", intent.Kind)
	}
	if intent.ToolToCall != contractx.ToolSearchTours {
		t.Fatalf("unexpected tool: %s", intent.ToolToCall)
	}
	if intent.ParamString("query") != "VR" {
		t.Fatalf("unexpected query param: %q", intent.ParamString("query"))
	}
}

func TestClassifyExtractsJSONFromProse(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{
		reply: "Here is the analysis:\n{\"intent\": \"greeting\", \"confidence\": 0.95, \"parameters\": {}, \"responseType\": \"direct\", \"message\": \"hi\"}\nDone.",
	}
	c := New(completer, nil)

	intent := c.Classify(context.Background(), "hello", nil)
	if intent.Kind != contractx.IntentGreeting {
		t.Fatalf("unexpected intent: %s", intent.Kind)
	}
}

func TestClassifyFallsBackOnOracleError(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{err: errors.New("model down")}
	c := New(completer, nil)

	intent := c.Classify(context.Background(), "hello", nil)
	if intent.Kind != contractx.IntentGreeting {
		t.Fatalf("expected rule fallback greeting, got %s", intent.Kind)
	}
	if intent.Message != "Greeting detected" {
		t.Fatalf("unexpected message: %q", intent.Message)
	}
}

func TestClassifyFallsBackOnUnparseableReply(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{reply: "I could not decide."}
	c := New(completer, nil)

	intent := c.Classify(context.Background(), "thank you", nil)
	if intent.Kind != contractx.IntentThanks {
		t.Fatalf("expected rule fallback thanks, got %s", intent.Kind)
	}
}

func TestClassifyFallsBackOnSchemaViolation(t *testing.T) {
	t.Parallel()

	// tool_call responseType without a tool must not cross the boundary.
	completer := &fakeCompleter{
		reply: `{"intent": "search", "confidence": 0.9, "parameters": {}, "responseType": "tool_call", "message": "bad"}`,
	}
	c := New(completer, nil)

	intent := c.Classify(context.Background(), "search waterfalls", nil)
	if intent.Kind != contractx.IntentSearch {
		t.Fatalf("expected rule fallback search, got %s", intent.Kind)
	}
	if intent.Message != "Search request detected" {
		t.Fatalf("expected the rule fallback, got %q", intent.Message)
	}
}

func TestParseIntentNormalizesNullStrings(t *testing.T) {
	t.Parallel()

	intent, err := parseIntent(`{"intent": "greeting", "tourId": "null", "confidence": 0.95, "toolToCall": "null", "parameters": {}, "responseType": "direct", "message": "hi"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.TourID != "" || intent.ToolToCall != "" {
		t.Fatalf("expected null strings cleared, got tourId=%q tool=%q", intent.TourID, intent.ToolToCall)
	}
}

func TestParseIntentRejectsUnknownIntent(t *testing.T) {
	t.Parallel()

	_, err := parseIntent(`{"intent": "order_pizza", "confidence": 0.9, "parameters": {}, "responseType": "direct", "message": "?"}`)
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestParseIntentRejectsDirectTourIDWithoutID(t *testing.T) {
	t.Parallel()

	_, err := parseIntent(`{"intent": "direct_tour_id", "tourId": "abc", "confidence": 0.9, "toolToCall": "get-tour-details", "parameters": {}, "responseType": "tool_call", "message": "?"}`)
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestFirstJSONObjectHandlesNestedBraces(t *testing.T) {
	t.Parallel()

	raw := firstJSONObject(`noise {"a": {"b": "with } inside"}, "c": 1} tail`)
	if raw != `{"a": {"b": "with } inside"}, "c": 1}` {
		t.Fatalf("unexpected extraction: %q", raw)
	}
}

func TestSmartFallbackUsesOracle(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{reply: "Try asking for tour details by ID."}
	c := New(completer, nil)

	got := c.SmartFallback(context.Background(), "whatever", nil)
	if got != "Try asking for tour details by ID." {
		t.Fatalf("unexpected reply: %q", got)
	}
	if completer.last.Temperature >= 0 {
		t.Fatalf("expected provider-default temperature, got %v", completer.last.Temperature)
	}
}

func TestSmartFallbackDefaultOnFailure(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{err: errors.New("model down")}
	c := New(completer, nil)

	if got := c.SmartFallback(context.Background(), "whatever", nil); got != defaultResponse {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestSmartFallbackDefaultOnEmptyReply(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{reply: "   "}
	c := New(completer, nil)

	if got := c.SmartFallback(context.Background(), "whatever", nil); got != defaultResponse {
		t.Fatalf("unexpected reply: %q", got)
	}
}
