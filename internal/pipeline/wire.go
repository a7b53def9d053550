package pipeline

import (
	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/diarization"
	"voice-agent-go/internal/entities"
	"voice-agent-go/internal/insights"
	"voice-agent-go/internal/llm"
	"voice-agent-go/internal/segmenter"
	"voice-agent-go/internal/transcription"
)

// FromConfig builds a coordinator with the OpenAI-compatible clients. In
// mock mode no client is constructed.
func FromConfig(cfg config.Config, log *logrus.Entry) *Coordinator {
	opts := Options{
		MockMode:         cfg.UseMock,
		SegmentThreshold: cfg.SegmentThreshold,
		UploadDir:        cfg.UploadDir,
	}
	if cfg.UseMock {
		return New(opts, Stages{}, log)
	}

	completer := llm.NewClient(llm.Config{
		BaseURL:      cfg.OpenAIBaseURL,
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.LLMModel,
		HTTPTimeout:  cfg.HTTPTimeout,
		MaxRetryTime: cfg.MaxRetryTime,
	}, log)
	svc := transcription.NewClient(transcription.Config{
		BaseURL:      cfg.OpenAIBaseURL,
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.TranscribeModel,
		HTTPTimeout:  cfg.HTTPTimeout,
		MaxRetryTime: cfg.MaxRetryTime,
	}, log)

	return New(opts, Stages{
		Segmenter: segmenter.New(segmenter.Config{
			FFmpegPath:   cfg.FFmpegPath,
			ChunkSeconds: cfg.ChunkSeconds,
		}, log),
		Transcriber: transcription.NewOrchestrator(svc, log),
		Diarizer:    diarization.NewAssigner(completer, log),
		Insights:    insights.NewExtractor(completer, log),
		Entities:    entities.NewExtractor(completer, log),
	}, log)
}
