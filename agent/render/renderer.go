// Package render turns raw tool payloads into user-facing prose through the
// completion oracle. Every function degrades on oracle failure: the wide
// renderers return the raw payload (full fidelity over prose), the narrow one
// returns a fixed sentinel so a failed extraction never leaks the whole
// payload.
package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/vrtravels/tour-concierge/agent/contract"
)

const (
	tourDetailsMaxTokens = 800
	trackingMaxTokens    = 600
	searchMaxTokens      = 700
	specificMaxTokens    = 200

	specificTemperature = 0.1
)

const extractionFailedReply = "I couldn't extract the specific information you requested from the tour data."

type Renderer struct {
	completer contractx.Completer
}

func New(completer contractx.Completer) *Renderer {
	return &Renderer{completer: completer}
}

// TourDetails formats a tour payload. On failure the payload comes back
// unmodified.
func (r *Renderer) TourDetails(ctx context.Context, payload, query string) string {
	system := fmt.Sprintf(`Format tour data concisely. Include key details: tour ID, client, dates, status, guests. Keep it brief and organized.

Tour data: %s
Query: %s`, payload, query)

	return r.completeOr(ctx, contractx.CompletionRequest{
		System:      system,
		User:        "Format tour information briefly.",
		MaxTokens:   tourDetailsMaxTokens,
		Temperature: -1,
	}, payload, "tour details")
}

// Tracking formats a tracking payload, falling back to the raw payload.
func (r *Renderer) Tracking(ctx context.Context, payload, query string) string {
	system := fmt.Sprintf(`Format tracking data briefly. Focus on: current status, guest locations, pickup/drop status, driver info. Keep concise.

Tracking data: %s
Query: %s`, payload, query)

	return r.completeOr(ctx, contractx.CompletionRequest{
		System:      system,
		User:        "Format tracking information briefly.",
		MaxTokens:   trackingMaxTokens,
		Temperature: -1,
	}, payload, "tracking")
}

// Search formats search results, falling back to a minimally wrapped payload.
func (r *Renderer) Search(ctx context.Context, payload, query string) string {
	system := fmt.Sprintf(`Format search results briefly. Show: number found, key details per tour (ID, client, date), keep it scannable.

Search results: %s
Query: %s`, payload, query)

	return r.completeOr(ctx, contractx.CompletionRequest{
		System:      system,
		User:        "Format search results briefly.",
		MaxTokens:   searchMaxTokens,
		Temperature: -1,
	}, "Search Results:\n"+payload, "search")
}

// SpecificAnswer asks the oracle to answer a narrow question from the
// payload. The fallback is a fixed sentinel, never the payload itself.
func (r *Renderer) SpecificAnswer(ctx context.Context, payload, query string) string {
	system := fmt.Sprintf(`Extract ONLY the specific information requested from the tour data.
Be concise and direct. Do not include the full tour details unless specifically asked.

Query: %s

Return ONLY the answer, no additional text.`, query)

	return r.completeOr(ctx, contractx.CompletionRequest{
		System:      system,
		User:        fmt.Sprintf("Tour Data: %s\n\nExtract the information requested in the query.", payload),
		MaxTokens:   specificMaxTokens,
		Temperature: specificTemperature,
	}, extractionFailedReply, "specific answer")
}

func (r *Renderer) completeOr(ctx context.Context, req contractx.CompletionRequest, fallback, kind string) string {
	reply, err := r.completer.Complete(ctx, req)
	if err != nil || strings.TrimSpace(reply) == "" {
		log.Warn().Err(err).Str("renderer", kind).Msg("rendering failed, returning fallback")
		return fallback
	}
	return reply
}
