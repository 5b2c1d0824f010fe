package whatsapp

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// InboundMessage is the normalized form of one webhook delivery.
type InboundMessage struct {
	Message         string
	RecipientNumber string
	UserName        string
	MessageID       string
}

type webhookPayload struct {
	// The provider sends these two as JSON-encoded strings, not objects.
	Messages string `json:"messages"`
	Contacts string `json:"contacts"`
}

type webhookMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Content string `json:"content"`
}

type webhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// ParseWebhook normalizes a raw webhook body. Returns nil when the payload
// carries no usable message text.
func ParseWebhook(body []byte) *InboundMessage {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Err(err).Msg("unparseable webhook body")
		return nil
	}

	var message webhookMessage
	if payload.Messages != "" {
		if err := json.Unmarshal([]byte(payload.Messages), &message); err != nil {
			log.Warn().Err(err).Msg("unparseable webhook messages field")
		}
	}

	var contact webhookContact
	if payload.Contacts != "" {
		if err := json.Unmarshal([]byte(payload.Contacts), &contact); err != nil {
			log.Warn().Err(err).Msg("unparseable webhook contacts field")
		}
	}

	text := strings.TrimSpace(message.Text.Body)
	if text == "" && message.Content != "" {
		var content struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(message.Content), &content); err == nil && content.Text != "" {
			text = strings.TrimSpace(content.Text)
		} else {
			text = strings.TrimSpace(message.Content)
		}
	}
	if text == "" {
		return nil
	}

	recipient := message.From
	if recipient == "" {
		recipient = contact.WaID
	}
	if recipient == "" {
		return nil
	}

	userName := contact.Profile.Name
	if userName == "" {
		userName = "Unknown"
	}

	messageID := message.ID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	return &InboundMessage{
		Message:         text,
		RecipientNumber: recipient,
		UserName:        userName,
		MessageID:       messageID,
	}
}
