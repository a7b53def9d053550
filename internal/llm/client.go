package llm

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
	"github.com/sirupsen/logrus"
)

// ErrNoContent is returned when the gateway answered without a message.
var ErrNoContent = errors.New("llm: response has no content")

// Request is one system+user exchange. JSONMode asks the gateway for a JSON
// object response; callers still have to validate what comes back.
type Request struct {
	System   string
	User     string
	JSONMode bool
}

// Completer returns the raw text of a chat completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
}

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logrus.Entry
}

func NewClient(cfg Config, log *logrus.Entry) *Client {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 25 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
		log:  log.WithField("component", "llm-client"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]any{"type": "json_object"}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var content string
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			c.log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		c.log.WithField("http_status", resp.StatusCode).Debug("llm raw:\n" + string(raw))

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("llm server error %d: %s", resp.StatusCode, truncate(raw))
		}
		if resp.StatusCode >= 400 {
			// Permanent: don't retry on client errors
			return backoff.Permanent(fmt.Errorf("llm client error %d: %s", resp.StatusCode, truncate(raw)))
		}
		text, ok := contentFromChoices(raw)
		if !ok {
			return backoff.Permanent(ErrNoContent)
		}
		content = text
		return nil
	}

	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	return content, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	if c.cfg.MaxRetryTime <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime
	return backoff.WithContext(b, ctx)
}

// contentFromChoices reads openai-style choices[0].message.content.
func contentFromChoices(body []byte) (string, bool) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", false
	}
	if parsed.Choices[0].Message.Content == nil {
		return "", false
	}
	return *parsed.Choices[0].Message.Content, true
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
