package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vrtravels/tour-concierge/agent/classify"
	contractx "github.com/vrtravels/tour-concierge/agent/contract"
	renderx "github.com/vrtravels/tour-concierge/agent/render"
	sessionx "github.com/vrtravels/tour-concierge/agent/session"
)

const testTourID = "39d11c40-7dba-11f0-a387-8508a0009d76"

// downCompleter simulates an unreachable model, driving every oracle caller
// onto its deterministic fallback.
type downCompleter struct{}

func (downCompleter) Complete(context.Context, contractx.CompletionRequest) (string, error) {
	return "", errors.New("model down")
}

type fakeGateway struct {
	payload  string
	err      error
	calls    int
	lastTool string
	lastArgs map[string]any
}

func (f *fakeGateway) Invoke(_ context.Context, name string, args map[string]any) (contractx.ToolResult, error) {
	f.calls++
	f.lastTool = name
	f.lastArgs = args
	if f.err != nil {
		return contractx.ToolResult{}, f.err
	}
	return contractx.ToolResult{
		Content: []contractx.ContentBlock{{Kind: "text", Text: f.payload}},
	}, nil
}

func newTestOrchestrator(t *testing.T, gateway contractx.ToolGateway) *Orchestrator {
	t.Helper()
	sessions := sessionx.NewManager(time.Hour)
	classifier := classify.New(downCompleter{}, nil)
	renderer := renderx.New(downCompleter{})
	o, err := New(sessions, classifier, renderer, gateway, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return o
}

func TestNewRejectsNilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, nil, nil, Config{}); err == nil {
		t.Fatal("expected error for nil session manager")
	}
}

func TestAnswerGreeting(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, &fakeGateway{})
	got := o.Answer(context.Background(), "hello", "user-1")
	if !strings.HasPrefix(got, "Hello! I'm your tour assistant.") {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerThanks(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, &fakeGateway{})
	if got := o.Answer(context.Background(), "thank you", "user-1"); got != thanksReply {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerHelpDefault(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, &fakeGateway{})
	if got := o.Answer(context.Background(), "xyzzy", "user-1"); got != helpReply {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerDirectTourIDInvokesDetails(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{payload: `{"id": "` + testTourID + `", "name": "City Walk"}`}
	o := newTestOrchestrator(t, gateway)

	got := o.Answer(context.Background(), testTourID, "user-1")
	if gateway.calls != 1 {
		t.Fatalf("expected 1 tool call, got %d", gateway.calls)
	}
	if gateway.lastTool != contractx.ToolTourDetails {
		t.Fatalf("unexpected tool: %s", gateway.lastTool)
	}
	if gateway.lastArgs["tourId"] != testTourID {
		t.Fatalf("unexpected args: %v", gateway.lastArgs)
	}
	// Renderer oracle is down, so the raw payload comes back.
	if got != gateway.payload {
		t.Fatalf("unexpected reply: %q", got)
	}

	sess, ok := o.Sessions().Lookup("user-1")
	if !ok {
		t.Fatal("expected session to exist")
	}
	if sess.CurrentTourID != testTourID {
		t.Fatalf("expected session topic set, got %q", sess.CurrentTourID)
	}
	if sess.LastTourData != gateway.payload {
		t.Fatal("expected tour payload cached on session")
	}
}

func TestAnswerTrackingWithoutIDAsksAndSkipsGateway(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{}
	o := newTestOrchestrator(t, gateway)

	got := o.Answer(context.Background(), "track my tour", "user-1")
	if got != needTrackingTourIDReply {
		t.Fatalf("unexpected reply: %q", got)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be invoked, got %d calls", gateway.calls)
	}

	sess, _ := o.Sessions().Lookup("user-1")
	if !sess.AwaitingTourID {
		t.Fatal("expected AwaitingTourID set")
	}
}

func TestAnswerTrackingUsesSessionTopic(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{payload: "pickup pending"}
	o := newTestOrchestrator(t, gateway)

	o.Answer(context.Background(), testTourID, "user-1") // establish topic
	got := o.Answer(context.Background(), "track it", "user-1")

	if gateway.lastTool != contractx.ToolTourTracking {
		t.Fatalf("unexpected tool: %s", gateway.lastTool)
	}
	if gateway.lastArgs["tourId"] != testTourID {
		t.Fatalf("unexpected args: %v", gateway.lastArgs)
	}
	if got != "pickup pending" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerTrackingForwardsGuestID(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{payload: "at hotel"}
	sessions := sessionx.NewManager(time.Hour)
	completer := classifiedCompleter{
		classification: `{"intent": "tracking", "tourId": "` + testTourID + `", "confidence": 0.9, "toolToCall": "get-tour-tracking", "parameters": {}, "responseType": "tool_call", "message": "tracking with guest"}`,
	}
	o, err := New(sessions, classify.New(completer, nil), renderx.New(completer), gateway, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	guestID := "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	o.Answer(context.Background(), "status of guest: "+guestID, "user-1")

	if gateway.lastTool != contractx.ToolTourTracking {
		t.Fatalf("unexpected tool: %s", gateway.lastTool)
	}
	if gateway.lastArgs["guestId"] != guestID {
		t.Fatalf("expected guestId forwarded, got: %v", gateway.lastArgs)
	}
}

func TestAnswerTrackingError(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{err: errors.New("backend unavailable")}
	o := newTestOrchestrator(t, gateway)

	o.Sessions().Get("user-1").CurrentTourID = testTourID
	got := o.Answer(context.Background(), "track it", "user-1")
	if got != "Error getting tracking: backend unavailable" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerSearchStripsStopwords(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{payload: "2 tours"}
	o := newTestOrchestrator(t, gateway)

	got := o.Answer(context.Background(), "search waterfalls", "user-1")
	if gateway.lastTool != contractx.ToolSearchTours {
		t.Fatalf("unexpected tool: %s", gateway.lastTool)
	}
	if gateway.lastArgs["query"] != "waterfalls" {
		t.Fatalf("unexpected search query: %v", gateway.lastArgs["query"])
	}
	if gateway.lastArgs["maxResults"] != 10 {
		t.Fatalf("unexpected maxResults: %v", gateway.lastArgs["maxResults"])
	}
	if got != "Search Results:\n2 tours" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerSearchEmptyQueryUsesDefault(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{payload: "1 tour"}
	sessions := sessionx.NewManager(time.Hour)
	completer := classifiedCompleter{
		classification: `{"intent": "search", "confidence": 0.9, "toolToCall": "search-tours", "parameters": {}, "responseType": "tool_call", "message": "bare search"}`,
	}
	o, err := New(sessions, classify.New(completer, nil), renderx.New(completer), gateway, Config{SearchDefaultQuery: "City"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "search tours" strips to nothing, so the configured default applies.
	o.Answer(context.Background(), "search tours", "user-1")
	if gateway.lastArgs["query"] != "City" {
		t.Fatalf("unexpected search query: %v", gateway.lastArgs["query"])
	}
}

func TestAnswerSearchError(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{err: errors.New("backend unavailable")}
	o := newTestOrchestrator(t, gateway)

	got := o.Answer(context.Background(), "search waterfalls", "user-1")
	if got != "Search error: backend unavailable" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerTourDetailsError(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{err: errors.New("backend unavailable")}
	o := newTestOrchestrator(t, gateway)

	got := o.Answer(context.Background(), testTourID, "user-1")
	if got != "Error: backend unavailable" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerTourDetailsConfirmsExistingTopic(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{payload: "payload"}
	sessions := sessionx.NewManager(time.Hour)
	completer := classifiedCompleter{
		classification: `{"intent": "tour_details", "tourId": null, "confidence": 0.8, "toolToCall": null, "parameters": {}, "responseType": "direct", "message": "details without id"}`,
	}
	o, err := New(sessions, classify.New(completer, nil), renderx.New(completer), gateway, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sessions.Get("user-1").CurrentTourID = testTourID
	got := o.Answer(context.Background(), "show me the tour details", "user-1")
	if gateway.calls != 0 {
		t.Fatal("expected no re-fetch for an id-less follow-up")
	}
	if !strings.Contains(got, "previously discussing tour "+testTourID) {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerTourDetailsWithoutIDAsks(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, &fakeGateway{})
	got := o.Answer(context.Background(), "tour details please", "user-1")
	if got != needTourIDReply {
		t.Fatalf("unexpected reply: %q", got)
	}

	sess, _ := o.Sessions().Lookup("user-1")
	if !sess.AwaitingTourID {
		t.Fatal("expected AwaitingTourID set")
	}
}

// classifiedCompleter returns one canned classification, letting tests reach
// intents the rule fallback cannot produce.
type classifiedCompleter struct {
	classification string
}

func (c classifiedCompleter) Complete(_ context.Context, req contractx.CompletionRequest) (string, error) {
	if strings.Contains(req.System, "query analyzer") {
		return c.classification, nil
	}
	return "", errors.New("model down")
}

func TestAnswerSpecificQuestionUsesExtractor(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{payload: `{"guests": [{"name": "Jane Doe"}]}`}
	sessions := sessionx.NewManager(time.Hour)
	completer := classifiedCompleter{
		classification: `{"intent": "specific_question", "tourId": "` + testTourID + `", "confidence": 0.9, "toolToCall": "get-tour-details", "parameters": {}, "responseType": "tool_call", "message": "guest question"}`,
	}
	o, err := New(sessions, classify.New(completer, nil), renderx.New(completer), gateway, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := o.Answer(context.Background(), "who is the guest on tour "+testTourID, "user-1")
	if got != "Guests (1 found):\n1. Jane Doe" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAnswerUnknownIntentUsesSmartFallback(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{}
	sessions := sessionx.NewManager(time.Hour)
	completer := classifiedCompleter{
		classification: `{"intent": "unknown", "confidence": 0.4, "parameters": {}, "responseType": "direct", "message": "unclear"}`,
	}
	o, err := New(sessions, classify.New(completer, nil), renderx.New(completer), gateway, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := o.Answer(context.Background(), "what is the meaning of life", "user-1")
	if !strings.HasPrefix(got, "Available commands:") {
		t.Fatalf("unexpected reply: %q", got)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be invoked, got %d calls", gateway.calls)
	}
}
