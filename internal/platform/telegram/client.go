package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"contest-engine-backend/internal/common/logger"
)

const apiBase = "https://api.telegram.org/bot"

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	httpClient *http.Client
	token      string
	log        zerolog.Logger
}

// Response is the standard Telegram API envelope.
type Response struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// APIError is a non-ok answer from the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: %d %s", e.Method, e.Code, e.Description)
}

// Retriable reports whether the error is worth another attempt. 429 and 5xx
// answers are; 4xx configuration faults are not.
func (e *APIError) Retriable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      token,
		log:        logger.Component("telegram"),
	}
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := apiBase + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s request: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}

	var apiResp Response
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !apiResp.Ok {
		return nil, &APIError{Method: method, Code: apiResp.ErrorCode, Description: apiResp.Description}
	}
	return &apiResp, nil
}

// SendGift delivers one gift from the bot's balance to the user.
func (c *Client) SendGift(ctx context.Context, recipientID int64, giftID string, message string) error {
	payload := map[string]interface{}{
		"user_id": recipientID,
		"gift_id": giftID,
	}
	if message != "" {
		payload["text"] = message
	}

	if _, err := c.call(ctx, "sendGift", payload); err != nil {
		c.log.Warn().Err(err).Int64("recipient_id", recipientID).Str("gift_id", giftID).Msg("sendGift failed")
		return err
	}

	c.log.Debug().Int64("recipient_id", recipientID).Str("gift_id", giftID).Msg("gift sent")
	return nil
}

// SendMessage posts a plain text message to the chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	return err
}
