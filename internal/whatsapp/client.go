// Package whatsapp wraps the Evolution API instance used for outbound
// messaging.
package whatsapp

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
	"leadflow_backend/platform/phone"
)

// Client talks to one Evolution API instance. A nil client is a valid no-op:
// construction returns nil when no API URL is configured and every method
// checks for it.
type Client struct {
	baseURL  string
	apiKey   string
	instance string
	http     *http.Client
	log      *logger.Logger
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID        string `json:"id"`
		RemoteJid string `json:"remoteJid"`
	} `json:"key"`
}

// NewClient creates an Evolution API client, or nil when not configured.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetEvolutionURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetEvolutionURL(), "/"),
		apiKey:   cfg.GetEvolutionAPIKey(),
		instance: cfg.GetEvolutionInstance(),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// SendText delivers a text message and returns the provider message ID.
func (c *Client) SendText(ctx context.Context, phoneNumber, text string) (string, error) {
	if c == nil {
		return "", nil
	}

	number := strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+")

	body, err := json.Marshal(sendTextRequest{Number: number, Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal sendText payload: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, c.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("evolution request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("evolution returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed sendTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// delivered but the response shape changed; keep going without the ID
		c.log.Warn("could not decode evolution response", "error", err)
		return "", nil
	}

	c.log.Info("whatsapp text sent", "number", number, "message_id", parsed.Key.ID)
	return parsed.Key.ID, nil
}
