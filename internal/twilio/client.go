// Package twilio provides the outbound SMS transport client.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"missedcall_backend/platform/config"
	"missedcall_backend/platform/logger"
	"missedcall_backend/platform/phone"
)

const (
	maxSendAttempts = 3
	baseRetryDelay  = 500 * time.Millisecond
)

// Sender sends SMS messages. Satisfied by *Client; faked in tests.
type Sender interface {
	Send(ctx context.Context, to, from, body string) (string, error)
}

type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	http       *http.Client
	log        *logger.Logger
}

type messageResponse struct {
	Sid          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// NewClient creates a Twilio messages client. Returns nil when Twilio is
// not configured; a nil client drops messages silently, which keeps local
// development working without credentials.
func NewClient(cfg config.TwilioConfig, log *logger.Logger) *Client {
	if !cfg.IsTwilioEnabled() {
		return nil
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetTwilioBaseURL(), "/"),
		accountSID: cfg.GetTwilioAccountSID(),
		authToken:  cfg.GetTwilioAuthToken(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Send delivers one SMS and returns the provider message SID. Transient
// failures (network errors, 5xx) are retried with exponential backoff;
// 4xx responses are returned immediately.
func (c *Client) Send(ctx context.Context, to, from, body string) (string, error) {
	if c == nil {
		return "", nil
	}

	var lastErr error
	delay := baseRetryDelay
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		sid, retryable, err := c.send(ctx, to, from, body)
		if err == nil {
			return sid, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("twilio send failed after %d attempts: %w", maxSendAttempts, lastErr)
}

func (c *Client) send(ctx context.Context, to, from, body string) (sid string, retryable bool, err error) {
	form := url.Values{}
	form.Set("To", phone.NormalizeE164(to))
	form.Set("From", phone.NormalizeE164(from))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("twilio request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", true, fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", false, fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed messageResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("decode twilio response: %w", err)
	}

	c.log.Info("sms sent", "to", form.Get("To"), "sid", parsed.Sid)
	return parsed.Sid, false, nil
}
