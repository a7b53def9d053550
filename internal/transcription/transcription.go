package transcription

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/types"
)

// Transcript is the merged transcription of one job.
type Transcript struct {
	Text     string
	Segments []types.TranscriptSegment
}

// Orchestrator feeds a whole file or its chunks to a Transcriber and merges
// the per-chunk results onto the original recording's timeline.
type Orchestrator struct {
	svc Transcriber
	log *logrus.Entry
}

func NewOrchestrator(svc Transcriber, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{svc: svc, log: log.WithField("component", "transcription-orchestrator")}
}

// TranscribeFile makes a single call and returns its result verbatim.
func (o *Orchestrator) TranscribeFile(ctx context.Context, audioPath string) (*Transcript, error) {
	res, err := o.svc.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe file: %w", err)
	}
	segs := make([]types.TranscriptSegment, 0, len(res.Segments))
	for _, s := range res.Segments {
		segs = append(segs, types.TranscriptSegment{ID: s.ID, Start: s.Start, End: s.End, Text: s.Text})
	}
	return &Transcript{Text: res.Text, Segments: segs}, nil
}

// TranscribeChunks visits chunks strictly in index order. A later chunk's
// offset depends on the durations of every earlier one, so this never runs
// chunks in parallel. Any failed chunk fails the whole transcript.
func (o *Orchestrator) TranscribeChunks(ctx context.Context, chunks []types.Chunk) (*Transcript, error) {
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Index <= chunks[i-1].Index {
			return nil, fmt.Errorf("chunks out of order at position %d (index %d after %d)", i, chunks[i].Index, chunks[i-1].Index)
		}
	}

	acc := mergeState{}
	for _, ch := range chunks {
		res, err := o.svc.Transcribe(ctx, ch.Path)
		if err != nil {
			return nil, fmt.Errorf("transcribe chunk %d: %w", ch.Index, err)
		}
		o.log.WithFields(logrus.Fields{
			"chunk":    ch.Index,
			"offset":   acc.offset,
			"segments": len(res.Segments),
		}).Debug("chunk transcribed")
		acc = acc.fold(ch, res)
	}
	return acc.transcript(), nil
}

// mergeState is the accumulator of the ordered fold over chunks.
type mergeState struct {
	offset   float64
	texts    []string
	segments []types.TranscriptSegment
}

func (m mergeState) fold(ch types.Chunk, res *Result) mergeState {
	next := mergeState{
		offset:   m.offset + chunkDuration(ch, res),
		texts:    append(m.texts, res.Text),
		segments: m.segments,
	}
	for _, s := range res.Segments {
		next.segments = append(next.segments, types.TranscriptSegment{
			ID:    len(next.segments),
			Start: s.Start + m.offset,
			End:   s.End + m.offset,
			Text:  s.Text,
		})
	}
	return next
}

func (m mergeState) transcript() *Transcript {
	segs := m.segments
	if segs == nil {
		segs = []types.TranscriptSegment{}
	}
	return &Transcript{
		Text:     strings.TrimSpace(strings.Join(m.texts, " ")),
		Segments: segs,
	}
}

// chunkDuration prefers the segmenter's measured length, then the duration
// reported by the service, then the end of the last segment.
func chunkDuration(ch types.Chunk, res *Result) float64 {
	switch {
	case ch.Duration > 0:
		return ch.Duration
	case res.Duration > 0:
		return res.Duration
	case len(res.Segments) > 0:
		return res.Segments[len(res.Segments)-1].End
	}
	return 0
}
