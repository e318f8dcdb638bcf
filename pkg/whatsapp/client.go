package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/noah-isme/sports-academy-api/pkg/config"
)

// Client talks to a WhatsApp Business Cloud style messages endpoint:
// POST {APIURL}/{SenderID}/messages with a bearer token.
type Client struct {
	endpoint   string
	token      string
	http       *http.Client
	maxRetries uint64
	initial    time.Duration
	logger     *zap.Logger
}

var _ Sender = (*Client)(nil)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api status %d: %s", e.StatusCode, e.Message)
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg config.NotifierConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIURL == "" || cfg.Token == "" || cfg.SenderID == "" {
		return nil, errors.New("whatsapp notifier requires WHATSAPP_API_URL, WHATSAPP_TOKEN and WHATSAPP_SENDER_ID")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		endpoint:   fmt.Sprintf("%s/%s/messages", strings.TrimRight(cfg.APIURL, "/"), cfg.SenderID),
		token:      cfg.Token,
		http:       &http.Client{Timeout: timeout},
		maxRetries: uint64(retries),
		initial:    500 * time.Millisecond,
		logger:     logger,
	}, nil
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Send posts the message, retrying transport errors, 429 and 5xx responses
// with exponential backoff. Other 4xx responses fail immediately.
func (c *Client) Send(ctx context.Context, msg Message) (*Result, error) {
	if msg.To == "" {
		return nil, errors.New("recipient phone is required")
	}
	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               normalizePhone(msg.To),
		Type:             "text",
		Text:             textBody{Body: msg.Body},
	})
	if err != nil {
		return nil, fmt.Errorf("encode whatsapp message: %w", err)
	}

	var result *Result
	attempt := 0
	operation := func() error {
		attempt++
		res, err := c.post(ctx, payload)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			c.logger.Sugar().Warnw("whatsapp send attempt failed", "to", msg.To, "attempt", attempt, "error", err)
			return err
		}
		result = res
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initial
	policy.MaxElapsedTime = 0
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build whatsapp request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read whatsapp response: %w", err)
	}

	var decoded sendResponse
	_ = json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := http.StatusText(resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			message = decoded.Error.Message
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	result := &Result{Success: true}
	if len(decoded.Messages) > 0 {
		result.MessageID = decoded.Messages[0].ID
	}
	return result, nil
}

// normalizePhone strips formatting characters; the API expects digits only.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
