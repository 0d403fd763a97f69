package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
)

// SendMessagePath is the responder route for operator replies.
const SendMessagePath = "/admin/send_message"

// SendMessageRequest is the JSON body of a relay call.
type SendMessageRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

// HTTPClient calls the responder's HTTP relay endpoint.
type HTTPClient struct {
	baseURL string
	secret  string
	http    *http.Client
}

var _ Deliverer = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the responder at baseURL.
func NewHTTPClient(baseURL, secret string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}
}

// Deliver asks the responder to send text to userID.
func (c *HTTPClient) Deliver(ctx context.Context, userID int64, text string) error {
	body, err := json.Marshal(SendMessageRequest{UserID: userID, Text: text})
	if err != nil {
		return fmt.Errorf("encode relay request: %w", err)
	}

	endpoint := c.baseURL + SendMessagePath + "?" + url.Values{"secret": {c.secret}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("relay rejected secret: %w", domain.ErrUnauthorized)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("relay rejected request: %w", domain.ErrInvalidInput)
	default:
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
}

// Healthy checks the responder's health endpoint.
func (c *HTTPClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("responder unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
