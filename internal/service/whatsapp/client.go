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

	"github.com/sirupsen/logrus"

	"github.com/carelink/whatsapp-bot/internal/service/ratelimit"
)

// MaxTextLength is the Graph API bound on a text body. Longer messages
// are rejected, never truncated silently.
const MaxTextLength = 4096

// MaxButtons is the Graph API bound on interactive reply buttons.
const MaxButtons = 3

// Button is one interactive reply option.
type Button struct {
	ID    string
	Title string
}

// Gateway is the messaging channel as the bot consumes it.
type Gateway interface {
	SendText(ctx context.Context, to, body string) error
	SendTemplate(ctx context.Context, to, templateName, languageCode string) error
	SendInteractive(ctx context.Context, to, body string, buttons []Button) error
	MarkRead(ctx context.Context, messageID string) error
}

// Client sends messages through the WhatsApp Business Graph API. Every
// outbound call takes a token from the limiter first.
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	limiter       *ratelimit.Limiter
	http          *http.Client
}

// NewClient builds a Client. baseURL already includes the API version,
// e.g. https://graph.facebook.com/v22.0.
func NewClient(baseURL, accessToken, phoneNumberID string, limiter *ratelimit.Limiter, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		limiter:       limiter,
		http:          &http.Client{Timeout: timeout},
	}
}

// SendText delivers a plain text message to the given WhatsApp address.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if len(body) > MaxTextLength {
		return fmt.Errorf("whatsapp: message body exceeds %d characters", MaxTextLength)
	}

	c.limiter.WaitForTokens(ratelimit.ClassWhatsAppSend, 1)
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return c.post(ctx, payload)
}

// SendTemplate delivers a pre-approved template message.
func (c *Client) SendTemplate(ctx context.Context, to, templateName, languageCode string) error {
	if languageCode == "" {
		languageCode = "en"
	}

	c.limiter.WaitForTokens(ratelimit.ClassWhatsAppSend, 1)
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]any{
			"name":     templateName,
			"language": map[string]string{"code": languageCode},
		},
	}
	return c.post(ctx, payload)
}

// SendInteractive delivers a message with reply buttons. Buttons beyond
// the API limit are dropped with a warning rather than failing the send.
func (c *Client) SendInteractive(ctx context.Context, to, body string, buttons []Button) error {
	if len(body) > MaxTextLength {
		return fmt.Errorf("whatsapp: message body exceeds %d characters", MaxTextLength)
	}
	if len(buttons) > MaxButtons {
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"dropped": len(buttons) - MaxButtons,
		}).Warn("interactive message has too many buttons, dropping extras")
		buttons = buttons[:MaxButtons]
	}

	replies := make([]map[string]any, 0, len(buttons))
	for i, b := range buttons {
		replies = append(replies, map[string]any{
			"type": "reply",
			"reply": map[string]string{
				"id":    fmt.Sprintf("btn_%d_%s", i, b.ID),
				"title": b.Title,
			},
		})
	}

	c.limiter.WaitForTokens(ratelimit.ClassWhatsAppSend, 1)
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]any{"buttons": replies},
		},
	}
	return c.post(ctx, payload)
}

// MarkRead flags an inbound message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	c.limiter.WaitForTokens(ratelimit.ClassWhatsAppRead, 1)
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	return c.post(ctx, payload)
}

func (c *Client) post(ctx context.Context, payload map[string]any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: encode payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logrus.WithField("status", resp.StatusCode).Error("whatsapp send failed")
		return fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
