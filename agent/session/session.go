package session

import "time"

const maxHistoryItems = 20

// HistoryItem is one turn of the conversation.
type HistoryItem struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the per-user conversational state, keyed by an opaque identifier
// (a phone number for the WhatsApp channel). Memory-resident and disposable;
// the eviction sweep is the only thing that removes one.
type Session struct {
	Identifier      string        `json:"identifier"`
	History         []HistoryItem `json:"history"`
	LastInteraction time.Time     `json:"last_interaction"`

	// CurrentTourID is the topic of the ongoing conversation, if any.
	CurrentTourID string `json:"current_tour_id,omitempty"`
	// AwaitingTourID is set after the assistant asked the user for an id.
	AwaitingTourID bool `json:"awaiting_tour_id"`
	// LastTourData caches the raw payload last fetched for the current tour,
	// used as context when answering narrow follow-up questions.
	LastTourData string `json:"-"`
}

func (s *Session) appendHistory(role, content string, now time.Time) {
	s.History = append(s.History, HistoryItem{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	if len(s.History) > maxHistoryItems {
		s.History = s.History[len(s.History)-maxHistoryItems:]
	}
}
