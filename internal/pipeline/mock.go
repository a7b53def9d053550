package pipeline

import "voice-agent-go/internal/types"

// MockResult is the fixed answer of mock mode, for offline testing of
// clients.
func MockResult() *types.PipelineResult {
	return &types.PipelineResult{
		Transcript: "Hi team, this is our weekly standup meeting...",
		Segments: []types.TranscriptSegment{
			{ID: 0, Start: 0.0, End: 1.5, Text: "Hi team,"},
			{ID: 1, Start: 1.5, End: 3.0, Text: "this is our weekly standup meeting"},
		},
		SpeakerSegments: []types.SpeakerSegment{
			{Speaker: "Speaker 1", ID: 0, Start: 0.0, End: 1.5, Text: "Hi team,"},
			{Speaker: "Speaker 2", ID: 1, Start: 1.5, End: 3.0, Text: "this is our weekly standup meeting"},
		},
		Summary: types.SummaryOf("Weekly standup meeting held with team updates"),
		ActionItems: []types.ActionItem{
			{Task: "Finish integration", Owner: "John", DueDate: "Friday"},
		},
		Entities: types.EntityResult{
			Names:        []string{"Sarah", "John"},
			Dates:        []string{"Friday"},
			PhoneNumbers: []string{"+1-202-555-0183"},
		},
		Intent: "Task Management",
	}
}
