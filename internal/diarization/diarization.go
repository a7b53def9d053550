package diarization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/llm"
	"voice-agent-go/internal/types"
)

const (
	SpeakerA = "Speaker 1"
	SpeakerB = "Speaker 2"
)

var errShape = errors.New("diarization response has the wrong shape")

const systemPrompt = `You are a diarization helper. Given transcript segments with timestamps, assign each to Speaker 1 or Speaker 2.
Return JSON only: a list with exactly one element per input segment, in the same order, each element being the input segment with an added "speaker" field whose value is "Speaker 1" or "Speaker 2".
If your output must be an object, put the list under the key "segments".`

// Assigner labels transcript segments with speakers. The result always has
// one SpeakerSegment per input segment, in input order.
type Assigner struct {
	llm llm.Completer
	log *logrus.Entry
}

func NewAssigner(c llm.Completer, log *logrus.Entry) *Assigner {
	return &Assigner{llm: c, log: log.WithField("component", "diarization")}
}

// Assign asks the model for labels and falls back to Alternate on any
// failure. The bool reports whether the fallback was used.
func (a *Assigner) Assign(ctx context.Context, segments []types.TranscriptSegment) ([]types.SpeakerSegment, bool) {
	if len(segments) == 0 {
		return []types.SpeakerSegment{}, false
	}
	labels, err := a.labels(ctx, segments)
	if err != nil {
		a.log.WithField("error", err.Error()).Warn("diarization degraded to alternating speakers")
		return Alternate(segments), true
	}
	out := make([]types.SpeakerSegment, len(segments))
	for i, s := range segments {
		out[i] = withSpeaker(s, labels[i])
	}
	return out, false
}

func (a *Assigner) labels(ctx context.Context, segments []types.TranscriptSegment) ([]string, error) {
	payload, err := json.Marshal(segments)
	if err != nil {
		return nil, err
	}
	content, err := a.llm.Complete(ctx, llm.Request{System: systemPrompt, User: string(payload), JSONMode: true})
	if err != nil {
		return nil, err
	}
	return parseLabels(content, len(segments))
}

// parseLabels accepts a list, or an object whose "segments" field is a list,
// of exactly n elements each carrying a known speaker label. Timing and text
// in the response are ignored.
func parseLabels(content string, n int) ([]string, error) {
	raw, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			Segments []json.RawMessage `json:"segments"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Segments == nil {
			return nil, fmt.Errorf("%w: not a list", errShape)
		}
		items = wrapped.Segments
	}
	if len(items) != n {
		return nil, fmt.Errorf("%w: %d labels for %d segments", errShape, len(items), n)
	}
	labels := make([]string, n)
	for i, item := range items {
		var el struct {
			Speaker string `json:"speaker"`
		}
		if err := json.Unmarshal(item, &el); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", errShape, i, err)
		}
		label, ok := normalizeLabel(el.Speaker)
		if !ok {
			return nil, fmt.Errorf("%w: element %d has label %q", errShape, i, el.Speaker)
		}
		labels[i] = label
	}
	return labels, nil
}

func normalizeLabel(s string) (string, bool) {
	switch strings.ToLower(strings.Join(strings.Fields(s), " ")) {
	case "speaker 1":
		return SpeakerA, true
	case "speaker 2":
		return SpeakerB, true
	}
	return "", false
}

// Alternate is the deterministic fallback: even positions get SpeakerA, odd
// positions SpeakerB.
func Alternate(segments []types.TranscriptSegment) []types.SpeakerSegment {
	out := make([]types.SpeakerSegment, len(segments))
	for i, s := range segments {
		label := SpeakerA
		if i%2 == 1 {
			label = SpeakerB
		}
		out[i] = withSpeaker(s, label)
	}
	return out
}

func withSpeaker(s types.TranscriptSegment, speaker string) types.SpeakerSegment {
	return types.SpeakerSegment{Speaker: speaker, ID: s.ID, Start: s.Start, End: s.End, Text: s.Text}
}
