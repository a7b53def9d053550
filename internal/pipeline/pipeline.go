// Package pipeline sequences the stages of one audio job and owns its
// temporary files from upload to response.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"voice-agent-go/internal/segmenter"
	"voice-agent-go/internal/transcription"
	"voice-agent-go/internal/types"
)

// ErrInvalidUpload is an input error: nothing to process.
var ErrInvalidUpload = errors.New("invalid upload")

// Stage names used in PipelineResult.Degraded.
const (
	StageDiarization = "diarization"
	StageInsights    = "insights"
	StageEntities    = "entities"
)

// Segmenter splits audio into chunks stored under root.
type Segmenter interface {
	SplitIn(ctx context.Context, audioPath, root string) (*segmenter.ChunkSet, error)
}

type Transcriber interface {
	TranscribeFile(ctx context.Context, audioPath string) (*transcription.Transcript, error)
	TranscribeChunks(ctx context.Context, chunks []types.Chunk) (*transcription.Transcript, error)
}

type SpeakerAssigner interface {
	Assign(ctx context.Context, segments []types.TranscriptSegment) ([]types.SpeakerSegment, bool)
}

type InsightExtractor interface {
	Extract(ctx context.Context, transcript string) (types.InsightResult, bool)
}

type EntityExtractor interface {
	Extract(ctx context.Context, transcript string) (types.EntityResult, bool)
}

// Stages are the collaborators of a Coordinator. In mock mode they may be nil.
type Stages struct {
	Segmenter   Segmenter
	Transcriber Transcriber
	Diarizer    SpeakerAssigner
	Insights    InsightExtractor
	Entities    EntityExtractor
}

type Options struct {
	// MockMode answers every job with MockResult() and contacts nothing.
	MockMode bool
	// SegmentThreshold is the byte size above which a job is split.
	SegmentThreshold int64
	// UploadDir holds one scoped directory per job.
	UploadDir string
}

type Coordinator struct {
	opts   Options
	stages Stages
	log    *logrus.Entry
}

func New(opts Options, stages Stages, log *logrus.Entry) *Coordinator {
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	return &Coordinator{opts: opts, stages: stages, log: log.WithField("component", "pipeline")}
}

// MockMode reports whether the coordinator answers with the fixed result.
func (c *Coordinator) MockMode() bool { return c.opts.MockMode }

// NewJob stages r in a directory of its own. An empty upload is an input
// error and leaves nothing behind.
func (c *Coordinator) NewJob(r io.Reader, filename string) (*types.AudioJob, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no file", ErrInvalidUpload)
	}
	if err := os.MkdirAll(c.opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	id := uuid.NewString()
	dir, err := os.MkdirTemp(c.opts.UploadDir, fmt.Sprintf("job_%d_%s_", time.Now().Unix(), id[:8]))
	if err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}

	job := &types.AudioJob{
		ID:       id,
		Dir:      dir,
		Filename: filepath.Base(filename),
		Path:     filepath.Join(dir, "upload"+audioExt(filename)),
		State:    types.StateReceived,
	}
	size, err := writeFile(job.Path, r)
	if err != nil {
		c.Discard(job)
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if size == 0 {
		c.Discard(job)
		return nil, fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}
	job.Size = size
	job.NeedsSegmentation = size > c.opts.SegmentThreshold
	return job, nil
}

// Discard removes the job's directory without processing it.
func (c *Coordinator) Discard(job *types.AudioJob) {
	if job == nil || job.Dir == "" {
		return
	}
	if err := os.RemoveAll(job.Dir); err != nil {
		c.log.WithField("job_id", job.ID).WithField("error", err.Error()).Warn("job cleanup failed")
	}
}

// Process runs one job to completion or failure. Once the transcript exists
// every later stage resolves to real or fallback output, so the only
// errors returned are input and transcription errors. The job directory is
// removed before Process returns.
func (c *Coordinator) Process(ctx context.Context, job *types.AudioJob) (*types.PipelineResult, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: no job", ErrInvalidUpload)
	}
	defer c.Discard(job)
	log := c.log.WithFields(logrus.Fields{"job_id": job.ID, "size": job.Size})

	if c.opts.MockMode {
		log.Info("mock mode: returning fixed result")
		c.transition(log, job, types.StateCompleted)
		return MockResult(), nil
	}
	if job.Path == "" || job.Size <= 0 {
		c.transition(log, job, types.StateFailed)
		return nil, fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}

	tr, err := c.transcribe(ctx, log, job)
	if err != nil {
		log.WithField("error", err.Error()).Error("transcription failed")
		c.transition(log, job, types.StateFailed)
		return nil, err
	}
	c.transition(log, job, types.StateTranscribed)

	res := c.enrich(ctx, tr)
	for _, st := range []types.JobState{types.StateDiarized, types.StateInsightsExtracted, types.StateEntitiesExtracted, types.StateCompleted} {
		c.transition(log, job, st)
	}
	if len(res.Degraded) > 0 {
		log.WithField("degraded", strings.Join(res.Degraded, ",")).Warn("job completed with fallbacks")
	}
	return res, nil
}

func (c *Coordinator) transcribe(ctx context.Context, log *logrus.Entry, job *types.AudioJob) (*transcription.Transcript, error) {
	if !job.NeedsSegmentation {
		return c.stages.Transcriber.TranscribeFile(ctx, job.Path)
	}
	// chunks live inside the job dir so the job owns a single directory
	cs, err := c.stages.Segmenter.SplitIn(ctx, job.Path, job.Dir)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	defer func() {
		if err := cs.Cleanup(); err != nil {
			log.WithField("error", err.Error()).Warn("chunk cleanup failed")
		}
	}()
	c.transition(log, job, types.StateSegmented)
	log.WithField("chunks", len(cs.Chunks)).Info("transcribing chunks")
	return c.stages.Transcriber.TranscribeChunks(ctx, cs.Chunks)
}

// enrich runs the post-transcription stages concurrently. They only read the
// merged transcript and each writes its own variables, attached to the
// result after all of them finished.
func (c *Coordinator) enrich(ctx context.Context, tr *transcription.Transcript) *types.PipelineResult {
	var (
		speakers []types.SpeakerSegment
		insight  types.InsightResult
		entities types.EntityResult

		diarizeDegraded, insightsDegraded, entitiesDegraded bool
	)
	// The stages resolve their own failures to fallbacks, so the group only
	// fans out and joins; Wait never reports an error.
	var g errgroup.Group
	g.Go(func() error {
		speakers, diarizeDegraded = c.stages.Diarizer.Assign(ctx, tr.Segments)
		return nil
	})
	g.Go(func() error {
		insight, insightsDegraded = c.stages.Insights.Extract(ctx, tr.Text)
		return nil
	})
	g.Go(func() error {
		entities, entitiesDegraded = c.stages.Entities.Extract(ctx, tr.Text)
		return nil
	})
	g.Wait()

	res := &types.PipelineResult{
		Transcript:      tr.Text,
		Segments:        tr.Segments,
		SpeakerSegments: speakers,
		Summary:         insight.Summary,
		ActionItems:     insight.ActionItems,
		Entities:        entities,
		Intent:          insight.Intent,
	}
	if res.Segments == nil {
		res.Segments = []types.TranscriptSegment{}
	}
	if res.SpeakerSegments == nil {
		res.SpeakerSegments = []types.SpeakerSegment{}
	}
	if diarizeDegraded {
		res.Degraded = append(res.Degraded, StageDiarization)
	}
	if insightsDegraded {
		res.Degraded = append(res.Degraded, StageInsights)
	}
	if entitiesDegraded {
		res.Degraded = append(res.Degraded, StageEntities)
	}
	return res
}

func (c *Coordinator) transition(log *logrus.Entry, job *types.AudioJob, to types.JobState) {
	log.WithFields(logrus.Fields{"from": job.State, "to": to}).Debug("job state")
	job.State = to
}

func audioExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 || strings.ContainsAny(ext, `/\`) {
		return ".mp3"
	}
	return ext
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
