package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSegmentThreshold = 20 * 1024 * 1024
	defaultChunkSeconds     = 60
)

// Config is built once in main and handed to constructors. Nothing below
// cmd/ reads the environment for behavioural switches.
type Config struct {
	Port        string
	Environment string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	TranscribeModel string
	LLMModel        string

	// UseMock makes the coordinator answer with a fixed result without
	// contacting any external service.
	UseMock bool

	SegmentThreshold int64
	ChunkSeconds     int
	FFmpegPath       string
	UploadDir        string

	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
}

// Load reads the process environment. Callers load .env beforehand.
func Load() Config {
	cfg := Config{
		Port:             envOr("PORT", "5000"),
		Environment:      envOr("ENVIRONMENT", "local"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    strings.TrimRight(envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		TranscribeModel:  envOr("TRANSCRIBE_MODEL", "whisper-1"),
		LLMModel:         envOr("LLM_MODEL", "gpt-4o-mini"),
		UseMock:          envBool("USE_MOCK"),
		SegmentThreshold: envInt64("SEGMENT_THRESHOLD_BYTES", defaultSegmentThreshold),
		ChunkSeconds:     int(envInt64("CHUNK_SECONDS", defaultChunkSeconds)),
		FFmpegPath:       envOr("FFMPEG_PATH", "ffmpeg"),
		UploadDir:        envOr("UPLOAD_DIR", os.TempDir()),
		HTTPTimeout:      time.Duration(envInt64("HTTP_TIMEOUT_SEC", 120)) * time.Second,
		MaxRetryTime:     time.Duration(envInt64("MAX_RETRY_SEC", 45)) * time.Second,
	}
	// without credentials every external call would fail, so behave like the
	// offline demo instead
	if cfg.OpenAIAPIKey == "" {
		cfg.UseMock = true
	}
	return cfg
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envBool(k string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(k)))
	return b
}

func envInt64(k string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
