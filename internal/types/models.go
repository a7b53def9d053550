package types

// JobState is the lifecycle position of one AudioJob.
type JobState string

const (
	StateReceived          JobState = "received"
	StateSegmented         JobState = "segmented"
	StateTranscribed       JobState = "transcribed"
	StateDiarized          JobState = "diarized"
	StateInsightsExtracted JobState = "insights-extracted"
	StateEntitiesExtracted JobState = "entities-extracted"
	StateCompleted         JobState = "completed"
	StateFailed            JobState = "failed"
)

// AudioJob is one processing request. Dir is scoped to the job and removed
// when the job reaches a terminal state.
type AudioJob struct {
	ID                string   `json:"id"`
	Dir               string   `json:"-"`
	Path              string   `json:"path"`
	Filename          string   `json:"filename"`
	Size              int64    `json:"size"`
	NeedsSegmentation bool     `json:"needs_segmentation"`
	State             JobState `json:"state"`
}

// Chunk is a time-contiguous slice of a recording. Start and Duration are in
// seconds relative to the original recording.
type Chunk struct {
	Index    int     `json:"index"`
	Path     string  `json:"path"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// TranscriptSegment timestamps are seconds on the original recording's timeline.
type TranscriptSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type SpeakerSegment struct {
	Speaker string  `json:"speaker"`
	ID      int     `json:"id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

type ActionItem struct {
	Task    string `json:"task"`
	Owner   string `json:"owner"`
	DueDate string `json:"due_date,omitempty"`
}

type InsightResult struct {
	Summary     Summary      `json:"summary"`
	ActionItems []ActionItem `json:"action_items"`
	Intent      string       `json:"intent"`
}

type EntityResult struct {
	Names        []string `json:"names"`
	Dates        []string `json:"dates"`
	PhoneNumbers []string `json:"phone_numbers"`
}

// PipelineResult is the only artifact returned for a job.
type PipelineResult struct {
	Transcript      string              `json:"transcript"`
	Segments        []TranscriptSegment `json:"segments"`
	SpeakerSegments []SpeakerSegment    `json:"speaker_segments"`
	Summary         Summary             `json:"summary"`
	ActionItems     []ActionItem        `json:"action_items"`
	Entities        EntityResult        `json:"entities"`
	Intent          string              `json:"intent"`

	// Degraded lists the stages that answered with their fallback output.
	Degraded []string `json:"-"`
}
