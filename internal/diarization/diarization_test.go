package diarization

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"voice-agent-go/internal/llm"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

type fakeCompleter struct {
	content string
	err     error
	req     llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.req = req
	return f.content, f.err
}

func segments(n int) []types.TranscriptSegment {
	out := make([]types.TranscriptSegment, n)
	for i := range out {
		out[i] = types.TranscriptSegment{ID: i, Start: float64(i), End: float64(i) + 1, Text: fmt.Sprintf("line %d", i)}
	}
	return out
}

func TestAlternate(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7} {
		in := segments(n)
		out := Alternate(in)
		if len(out) != n {
			t.Fatalf("n=%d: len = %d", n, len(out))
		}
		for i, s := range out {
			want := SpeakerA
			if i%2 == 1 {
				want = SpeakerB
			}
			if s.Speaker != want {
				t.Errorf("n=%d: segment %d speaker = %q, want %q", n, i, s.Speaker, want)
			}
			if s.ID != in[i].ID || s.Start != in[i].Start || s.End != in[i].End || s.Text != in[i].Text {
				t.Errorf("n=%d: segment %d = %+v, want fields of %+v", n, i, s, in[i])
			}
		}
	}
}

func TestAssign_UsesModelLabels(t *testing.T) {
	fc := &fakeCompleter{content: `[
		{"id":0,"start":0,"end":1,"text":"line 0","speaker":"Speaker 2"},
		{"id":1,"start":99,"end":100,"text":"rewritten","speaker":"speaker 2"},
		{"id":2,"start":2,"end":3,"text":"line 2","speaker":"Speaker 1"}
	]`}
	a := NewAssigner(fc, logger.Discard().Entry)
	in := segments(3)

	out, degraded := a.Assign(context.Background(), in)
	if degraded {
		t.Fatal("degraded = true, want model labels")
	}
	want := []string{SpeakerB, SpeakerB, SpeakerA}
	for i, s := range out {
		if s.Speaker != want[i] {
			t.Errorf("segment %d speaker = %q, want %q", i, s.Speaker, want[i])
		}
		if s.Start != in[i].Start || s.Text != in[i].Text {
			t.Errorf("segment %d timing/text taken from model: %+v", i, s)
		}
	}
	if !fc.req.JSONMode {
		t.Error("request not in JSON mode")
	}
}

func TestAssign_AcceptsWrappedList(t *testing.T) {
	fc := &fakeCompleter{content: `{"segments":[{"speaker":"Speaker 1"},{"speaker":"Speaker 1"}]}`}
	out, degraded := NewAssigner(fc, logger.Discard().Entry).Assign(context.Background(), segments(2))
	if degraded {
		t.Fatal("degraded = true")
	}
	if out[0].Speaker != SpeakerA || out[1].Speaker != SpeakerA {
		t.Errorf("speakers = %q, %q", out[0].Speaker, out[1].Speaker)
	}
}

func TestAssign_FallsBack(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
	}{
		{"call error", "", errors.New("connection refused")},
		{"not json", "I think there are two speakers.", nil},
		{"object without list", `{"speaker":"Speaker 1"}`, nil},
		{"short list", `[{"speaker":"Speaker 1"}]`, nil},
		{"long list", `[{"speaker":"Speaker 1"},{"speaker":"Speaker 2"},{"speaker":"Speaker 1"},{"speaker":"Speaker 2"}]`, nil},
		{"unknown label", `[{"speaker":"Speaker 1"},{"speaker":"Alice"},{"speaker":"Speaker 1"}]`, nil},
		{"element not object", `["Speaker 1","Speaker 2","Speaker 1"]`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := segments(3)
			fc := &fakeCompleter{content: tt.content, err: tt.err}
			out, degraded := NewAssigner(fc, logger.Discard().Entry).Assign(context.Background(), in)
			if !degraded {
				t.Error("degraded = false, want fallback")
			}
			want := Alternate(in)
			if len(out) != len(want) {
				t.Fatalf("len = %d, want %d", len(out), len(want))
			}
			for i := range want {
				if out[i] != want[i] {
					t.Errorf("segment %d = %+v, want %+v", i, out[i], want[i])
				}
			}
		})
	}
}

func TestAssign_EmptyTranscriptSkipsCall(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("should not be called")}
	out, degraded := NewAssigner(fc, logger.Discard().Entry).Assign(context.Background(), nil)
	if len(out) != 0 || degraded {
		t.Errorf("out = %v degraded = %v", out, degraded)
	}
	if fc.req.User != "" {
		t.Error("completer called for empty transcript")
	}
}
