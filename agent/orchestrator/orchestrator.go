// Package orchestrator is the pipeline's single entry point: it classifies a
// query, routes it to the matching intent handler, and guarantees that every
// failure path still resolves to a user-facing string.
package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vrtravels/tour-concierge/agent/classify"
	contractx "github.com/vrtravels/tour-concierge/agent/contract"
	renderx "github.com/vrtravels/tour-concierge/agent/render"
	sessionx "github.com/vrtravels/tour-concierge/agent/session"
)

type Config struct {
	// SearchDefaultQuery is used when stopword-stripping empties a search
	// query entirely.
	SearchDefaultQuery string `envconfig:"SEARCH_DEFAULT_QUERY" split_words:"true" default:"VR"`
}

type Orchestrator struct {
	sessions   *sessionx.Manager
	classifier *classify.Classifier
	renderer   *renderx.Renderer
	gateway    contractx.ToolGateway

	searchDefault string
}

func New(
	sessions *sessionx.Manager,
	classifier *classify.Classifier,
	renderer *renderx.Renderer,
	gateway contractx.ToolGateway,
	cfg Config,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if gateway == nil {
		return nil, errors.New("tool gateway is required")
	}

	searchDefault := strings.TrimSpace(cfg.SearchDefaultQuery)
	if searchDefault == "" {
		searchDefault = "VR"
	}

	return &Orchestrator{
		sessions:      sessions,
		classifier:    classifier,
		renderer:      renderer,
		gateway:       gateway,
		searchDefault: searchDefault,
	}, nil
}

// Sessions exposes the session manager for the transport layer (history
// bookkeeping and the debug endpoint).
func (o *Orchestrator) Sessions() *sessionx.Manager {
	return o.sessions
}

// Answer processes one query for one user and always returns prose. Nothing
// here is fatal: classification recovers through the rule fallback, tool
// failures become "<action> error" strings, and anything escaping routing
// lands on the direct-id last resort.
func (o *Orchestrator) Answer(ctx context.Context, query, userIdentifier string) (reply string) {
	sess := o.sessions.Get(userIdentifier)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("identifier", userIdentifier).Msg("query processing panicked")
			if tourID := classify.TourID(query); tourID != "" {
				reply = o.handleDirectTourID(ctx, tourID, sess, query)
				return
			}
			reply = notUnderstoodReply
		}
	}()

	intent := o.classifier.Classify(ctx, query, sess)
	log.Debug().
		Str("intent", string(intent.Kind)).
		Float64("confidence", intent.Confidence).
		Str("identifier", userIdentifier).
		Msg("query classified")

	// The rule fallback lands on direct/help when it has nothing better;
	// short-circuit to the canned help text instead of routing.
	if intent.ResponseType == contractx.ResponseDirect && intent.Kind == contractx.IntentHelp {
		return helpReply
	}

	return o.route(ctx, intent, sess, query)
}

func (o *Orchestrator) route(ctx context.Context, intent contractx.Intent, sess *sessionx.Session, query string) string {
	switch intent.Kind {
	case contractx.IntentGreeting:
		return greetingReply
	case contractx.IntentThanks:
		return thanksReply
	case contractx.IntentHelp:
		return helpReply
	case contractx.IntentTourDetails, contractx.IntentSpecificQuestion:
		return o.handleTourDetails(ctx, intent, sess, query)
	case contractx.IntentTracking:
		return o.handleTracking(ctx, intent, sess, query)
	case contractx.IntentSearch:
		return o.handleSearch(ctx, intent, query)
	case contractx.IntentDirectTourID:
		return o.handleDirectTourID(ctx, intent.TourID, sess, query)
	default:
		return o.classifier.SmartFallback(ctx, query, sess)
	}
}
