package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ErrService marks failures of the transcription service itself.
var ErrService = errors.New("transcription service failed")

// Segment is one timed span as returned by the service, relative to the
// start of the submitted audio.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the verbose_json shape of a transcription.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

// Transcriber converts one audio file into text and timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
}

// Client calls an OpenAI-compatible /audio/transcriptions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logrus.Entry
}

func NewClient(cfg Config, log *logrus.Entry) *Client {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
		log:  log.WithField("component", "transcription"),
	}
}

func (c *Client) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/audio/transcriptions"
	log := c.log.WithField("audio", filepath.Base(audioPath))

	var out Result
	op := func() error {
		// the multipart body is consumed by each attempt, so rebuild it
		body, contentType, err := multipartAudio(audioPath, c.cfg.Model)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.http.Do(req)
		if err != nil {
			log.WithError(err).Warn("transcription request failed")
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, string(raw))
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("http %d: %s", resp.StatusCode, string(raw)))
		}
		out = Result{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("json decode error: %v body=%s", err, string(raw)))
		}
		return nil
	}

	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	log.WithField("segments", len(out.Segments)).Info("transcription received")
	return &out, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	if c.cfg.MaxRetryTime <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime
	return backoff.WithContext(b, ctx)
}

func multipartAudio(audioPath, model string) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	if err := w.WriteField("model", model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", err
	}
	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}
