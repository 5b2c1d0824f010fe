// Package whatsapp delivers outbound messages through the provider's REST API
// and parses its inbound webhook payloads. Delivery is fire-and-forget: the
// pipeline never retries a failed send.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const maxResponseSizeBytes = 1 << 20

type Config struct {
	APIKey           string        `envconfig:"API_KEY" split_words:"true"`
	IntegratedNumber string        `envconfig:"INTEGRATED_NUMBER" split_words:"true" default:"15558428640"`
	BaseURL          string        `envconfig:"BASE_URL" split_words:"true" default:"https://control.msg91.com/api/v5/whatsapp/whatsapp-outbound-message/"`
	Timeout          time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type Client struct {
	baseURL          string
	apiKey           string
	integratedNumber string
	httpClient       *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("whatsapp base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid whatsapp base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:          baseURL,
		apiKey:           strings.TrimSpace(cfg.APIKey),
		integratedNumber: strings.TrimSpace(cfg.IntegratedNumber),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Enabled reports whether outbound delivery is configured at all.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type outboundMessage struct {
	RecipientNumber  string `json:"recipient_number"`
	Text             string `json:"text"`
	ContentType      string `json:"content_type"`
	IntegratedNumber string `json:"integrated_number"`
}

// Send pushes one text message to recipient. Errors are returned, never
// retried here.
func (c *Client) Send(ctx context.Context, text, recipient string) error {
	if !c.Enabled() {
		return errors.New("whatsapp api key not configured")
	}

	body, err := json.Marshal(outboundMessage{
		RecipientNumber:  recipient,
		Text:             text,
		ContentType:      "text",
		IntegratedNumber: c.integratedNumber,
	})
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build outbound request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authkey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute outbound request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read outbound response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("whatsapp http status=%d body=%s", resp.StatusCode, string(raw))
	}

	log.Debug().Str("recipient", recipient).Msg("whatsapp message sent")
	return nil
}
