package orchestrator

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/vrtravels/tour-concierge/agent/classify"
	contractx "github.com/vrtravels/tour-concierge/agent/contract"
	extractx "github.com/vrtravels/tour-concierge/agent/extract"
	sessionx "github.com/vrtravels/tour-concierge/agent/session"
)

// An extraction longer than this, or identical to its input, means the
// rule-based extractor found nothing narrow and the oracle should render
// instead.
const maxExtractedLength = 500

var guestIDPattern = regexp.MustCompile(`(?i)guest[:\s]+([a-f0-9-]{36})`)

// handleTourDetails serves both tour_details and specific_question. State
// machine: no id anywhere -> awaiting-id; id only in session -> confirm the
// existing topic without re-fetching; id supplied -> has-topic, fetch, render.
func (o *Orchestrator) handleTourDetails(ctx context.Context, intent contractx.Intent, sess *sessionx.Session, query string) string {
	tourID := intent.TourID

	if tourID == "" && sess.CurrentTourID != "" {
		return fmt.Sprintf("I see we were previously discussing tour %s. Would you like details for this same tour, or do you have a different tour ID?", sess.CurrentTourID)
	}
	if tourID == "" {
		sess.AwaitingTourID = true
		return needTourIDReply
	}

	sess.CurrentTourID = tourID
	sess.AwaitingTourID = false

	log.Info().Str("tour_id", tourID).Msg("getting tour details")
	result, err := o.gateway.Invoke(ctx, contractx.ToolTourDetails, map[string]any{"tourId": tourID})
	if err != nil {
		return fmt.Sprintf("Error getting tour details: %s", err)
	}

	payload := result.Text()
	sess.LastTourData = payload

	if intent.Kind == contractx.IntentSpecificQuestion {
		return o.answerSpecific(ctx, payload, query)
	}
	return o.renderer.TourDetails(ctx, payload, query)
}

// answerSpecific runs the rule-based extractor first and accepts its output
// only past the confidence gate; otherwise the oracle renders the narrow
// answer.
func (o *Orchestrator) answerSpecific(ctx context.Context, payload, query string) string {
	extracted := extractx.Specific(payload, query)
	if len(extracted) > maxExtractedLength || extracted == payload {
		return o.renderer.SpecificAnswer(ctx, payload, query)
	}
	return extracted
}

func (o *Orchestrator) handleTracking(ctx context.Context, intent contractx.Intent, sess *sessionx.Session, query string) string {
	tourID := intent.TourID
	if tourID == "" {
		tourID = sess.CurrentTourID
	}
	if tourID == "" {
		sess.AwaitingTourID = true
		return needTrackingTourIDReply
	}

	args := map[string]any{"tourId": tourID}
	if m := guestIDPattern.FindStringSubmatch(query); m != nil {
		args["guestId"] = m[1]
	}

	log.Info().Str("tour_id", tourID).Msg("getting tour tracking")
	result, err := o.gateway.Invoke(ctx, contractx.ToolTourTracking, args)
	if err != nil {
		return fmt.Sprintf("Error getting tracking: %s", err)
	}

	return o.renderer.Tracking(ctx, result.Text(), query)
}

func (o *Orchestrator) handleSearch(ctx context.Context, intent contractx.Intent, query string) string {
	searchQuery := intent.ParamString("query")
	if searchQuery == "" {
		searchQuery = classify.StripSearchStopwords(query)
	}
	if searchQuery == "" {
		searchQuery = o.searchDefault
	}

	log.Info().Str("query", searchQuery).Msg("searching tours")
	result, err := o.gateway.Invoke(ctx, contractx.ToolSearchTours, map[string]any{
		"query":      searchQuery,
		"maxResults": 10,
	})
	if err != nil {
		return fmt.Sprintf("Search error: %s", err)
	}

	return o.renderer.Search(ctx, result.Text(), query)
}

// handleDirectTourID is the tour_details path entered with an id already in
// hand, also reached from the dispatcher's last resort.
func (o *Orchestrator) handleDirectTourID(ctx context.Context, tourID string, sess *sessionx.Session, query string) string {
	sess.CurrentTourID = tourID
	sess.AwaitingTourID = false

	log.Info().Str("tour_id", tourID).Msg("getting tour details")
	result, err := o.gateway.Invoke(ctx, contractx.ToolTourDetails, map[string]any{"tourId": tourID})
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}

	payload := result.Text()
	sess.LastTourData = payload

	return o.renderer.TourDetails(ctx, payload, query)
}
