package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"voice-agent-go/internal/logger"
)

func createTempAudio(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "meeting.mp3")
	if err := os.WriteFile(p, []byte("fake-audio-data"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return p
}

func newTestClient(url string, retry time.Duration) *Client {
	return NewClient(Config{
		BaseURL:      url,
		APIKey:       "sk-test",
		HTTPTimeout:  5 * time.Second,
		MaxRetryTime: retry,
	}, logger.Discard().Entry)
}

const verboseJSON = `{
	"text": "Hi team, this is our weekly standup meeting",
	"language": "english",
	"duration": 3.0,
	"segments": [
		{"id": 0, "start": 0.0, "end": 1.5, "text": "Hi team,"},
		{"id": 1, "start": 1.5, "end": 3.0, "text": "this is our weekly standup meeting"}
	]
}`

func TestClientTranscribe_Success(t *testing.T) {
	audio := createTempAudio(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q, want whisper-1", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "meeting.mp3" || string(data) != "fake-audio-data" {
			t.Errorf("file = %s (%q)", hdr.Filename, data)
		}
		w.Write([]byte(verboseJSON))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, 0).Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if res.Duration != 3.0 || len(res.Segments) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Segments[1].Start != 1.5 || res.Segments[1].Text != "this is our weekly standup meeting" {
		t.Errorf("segment 1 = %+v", res.Segments[1])
	}
}

func TestClientTranscribe_RetryRebuildsBody(t *testing.T) {
	audio := createTempAudio(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("attempt %d: parse multipart: %v", atomic.LoadInt32(&calls)+1, err)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		w.Write([]byte(verboseJSON))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL, 10*time.Second).Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestClientTranscribe_Errors(t *testing.T) {
	audio := createTempAudio(t)
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"client error", http.StatusBadRequest, `{"error":"unsupported codec"}`},
		{"garbage body", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, 10*time.Second).Transcribe(context.Background(), audio)
			if !errors.Is(err, ErrService) {
				t.Errorf("err = %v, want ErrService", err)
			}
		})
	}
}

func TestClientTranscribe_MissingFile(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:0", 0).Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"))
	if err == nil {
		t.Fatal("Transcribe() error = nil, want error")
	}
}

func TestClientTranscribe_LogsComponent(t *testing.T) {
	audio := createTempAudio(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, verboseJSON)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "sk-test"}, logger.NewWithOutput("production", "info", &buf).Entry)
	if _, err := c.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if entry["component"] != "transcription" {
		t.Errorf("component = %v, want transcription", entry["component"])
	}
	if _, ok := entry["module"]; ok {
		t.Error("unexpected module field")
	}
}
