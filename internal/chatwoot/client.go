// Package chatwoot mirrors conversation traffic into a Chatwoot account.
// Mirroring is strictly best effort: failures are logged and never surface
// to the calling flow.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// Client talks to the Chatwoot application API. Nil when not configured.
type Client struct {
	baseURL   string
	token     string
	accountID string
	http      *http.Client
	log       *logger.Logger
}

// NewClient creates a Chatwoot client, or nil when not configured.
func NewClient(cfg config.ChatwootConfig, log *logger.Logger) *Client {
	if cfg.GetChatwootURL() == "" || cfg.GetChatwootAccountID() == "" {
		return nil
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.GetChatwootURL(), "/"),
		token:     cfg.GetChatwootAPIToken(),
		accountID: cfg.GetChatwootAccountID(),
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

type messagePayload struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"` // incoming | outgoing
	Private     bool   `json:"private"`
}

// MirrorMessage appends a message to a Chatwoot conversation. The Chatwoot
// conversation ID is the caller's concern; we only ship the content.
func (c *Client) MirrorMessage(ctx context.Context, conversationID int64, content, direction string) {
	if c == nil {
		return
	}

	messageType := "incoming"
	if direction == "out" {
		messageType = "outgoing"
	}

	body, err := json.Marshal(messagePayload{Content: content, MessageType: messageType})
	if err != nil {
		c.log.Warn("chatwoot payload marshal failed", "error", err)
		return
	}

	url := fmt.Sprintf("%s/api/v1/accounts/%s/conversations/%d/messages", c.baseURL, c.accountID, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		c.log.Warn("chatwoot request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_access_token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("chatwoot mirror failed", "error", err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		c.log.Warn("chatwoot mirror rejected",
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(data)))
	}
}
