package aggregator

import (
	"reflect"
	"testing"

	"voice-agent-go/internal/types"
)

func TestAggregate(t *testing.T) {
	results := []*types.PipelineResult{
		{
			Segments:    make([]types.TranscriptSegment, 3),
			Intent:      "Task Management",
			ActionItems: []types.ActionItem{{Task: "a", Owner: "John"}, {Task: "b", Owner: " "}},
		},
		nil,
		{
			Segments:    make([]types.TranscriptSegment, 2),
			Intent:      "Task Management",
			ActionItems: []types.ActionItem{{Task: "c", Owner: "John"}},
			Degraded:    []string{"entities", "diarization"},
		},
		{Intent: "Unknown", Degraded: []string{"entities"}},
	}

	got := Aggregate(results)
	if got.Jobs != 4 || got.Failed != 1 || got.Segments != 5 {
		t.Errorf("jobs/failed/segments = %d/%d/%d, want 4/1/5", got.Jobs, got.Failed, got.Segments)
	}
	if !reflect.DeepEqual(got.IntentCounts, map[string]int{"Task Management": 2, "Unknown": 1}) {
		t.Errorf("IntentCounts = %v", got.IntentCounts)
	}
	if !reflect.DeepEqual(got.ActionItemsByOwner, map[string]int{"John": 2, unassigned: 1}) {
		t.Errorf("ActionItemsByOwner = %v", got.ActionItemsByOwner)
	}
	if !reflect.DeepEqual(got.DegradedByStage, map[string]int{"entities": 2, "diarization": 1}) {
		t.Errorf("DegradedByStage = %v", got.DegradedByStage)
	}
}

func TestRanked(t *testing.T) {
	got := Ranked(map[string]int{"b": 2, "a": 2, "c": 5})
	want := []Count{{"c", 5}, {"a", 2}, {"b", 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ranked() = %v, want %v", got, want)
	}
}
