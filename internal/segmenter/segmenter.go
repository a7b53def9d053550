// Package segmenter splits large recordings into fixed-duration chunks with
// ffmpeg's segment muxer, copying the audio stream without re-encoding.
package segmenter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/types"
)

// ErrSplit is returned when ffmpeg could not split the input.
var ErrSplit = errors.New("audio segmentation failed")

const (
	DefaultChunkSeconds = 60
	segmentListName     = "segments.csv"
	chunkPrefix         = "chunk_"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Config struct {
	FFmpegPath   string
	ChunkSeconds int
	// TempRoot is where Split creates chunk directories. SplitIn takes the
	// root from the caller instead.
	TempRoot string
}

type Segmenter struct {
	cfg    Config
	runner Runner
	log    *logrus.Entry
}

type Option func(*Segmenter)

// WithRunner replaces the os/exec runner.
func WithRunner(r Runner) Option {
	return func(s *Segmenter) { s.runner = r }
}

func New(cfg Config, log *logrus.Entry, opts ...Option) *Segmenter {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = DefaultChunkSeconds
	}
	s := &Segmenter{cfg: cfg, runner: execRunner{}, log: log.WithField("component", "segmenter")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ChunkSet owns the chunk directory. Cleanup must be called on every path.
type ChunkSet struct {
	Dir    string
	Chunks []types.Chunk

	once sync.Once
	err  error
}

// Cleanup removes the chunk directory. Calls after the first are no-ops.
func (cs *ChunkSet) Cleanup() error {
	cs.once.Do(func() {
		cs.err = os.RemoveAll(cs.Dir)
	})
	return cs.err
}

// Split cuts audioPath into ordered chunks inside a fresh directory under
// TempRoot. On failure the directory is already gone when Split returns.
func (s *Segmenter) Split(ctx context.Context, audioPath string) (*ChunkSet, error) {
	return s.SplitIn(ctx, audioPath, s.cfg.TempRoot)
}

// SplitIn is Split with the chunk directory created under root.
func (s *Segmenter) SplitIn(ctx context.Context, audioPath, root string) (*ChunkSet, error) {
	dir, err := os.MkdirTemp(root, "chunks_*")
	if err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}
	cs := &ChunkSet{Dir: dir}

	chunks, err := s.split(ctx, audioPath, dir)
	if err != nil {
		if rmErr := cs.Cleanup(); rmErr != nil {
			s.log.WithField("dir", dir).WithField("error", rmErr.Error()).Warn("chunk dir cleanup failed")
		}
		return nil, err
	}
	cs.Chunks = chunks
	s.log.WithFields(logrus.Fields{"chunks": len(chunks), "dir": dir}).Info("audio split")
	return cs, nil
}

func (s *Segmenter) split(ctx context.Context, audioPath, dir string) ([]types.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(audioPath))
	if ext == "" {
		ext = ".mp3"
	}
	listPath := filepath.Join(dir, segmentListName)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", audioPath,
		"-map", "0:a",
		"-c", "copy",
		"-f", "segment",
		"-segment_time", strconv.Itoa(s.cfg.ChunkSeconds),
		"-reset_timestamps", "1",
		"-segment_list", listPath,
		"-segment_list_type", "csv",
		filepath.Join(dir, chunkPrefix+"%03d"+ext),
	}
	if out, err := s.runner.Run(ctx, s.cfg.FFmpegPath, args...); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrSplit, err, strings.TrimSpace(string(out)))
	}

	chunks, err := readSegmentList(listPath, dir)
	if errors.Is(err, os.ErrNotExist) {
		chunks, err = listChunks(dir, float64(s.cfg.ChunkSeconds))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSplit, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no chunks", ErrSplit)
	}
	return chunks, nil
}

// readSegmentList parses ffmpeg's csv segment list: file,start,end.
func readSegmentList(listPath, dir string) ([]types.Chunk, error) {
	f, err := os.Open(listPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3
	var chunks []types.Chunk
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read segment list: %w", err)
		}
		start, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("segment list start %q: %w", rec[1], err)
		}
		end, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("segment list end %q: %w", rec[2], err)
		}
		chunks = append(chunks, types.Chunk{
			Index:    len(chunks),
			Path:     filepath.Join(dir, filepath.Base(rec[0])),
			Start:    start,
			Duration: end - start,
		})
	}
	return chunks, nil
}

// listChunks is used when no segment list was written. Names sort in time
// order because of the zero-padded index.
func listChunks(dir string, nominal float64) ([]types.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), chunkPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	chunks := make([]types.Chunk, 0, len(names))
	for i, n := range names {
		chunks = append(chunks, types.Chunk{
			Index:    i,
			Path:     filepath.Join(dir, n),
			Start:    float64(i) * nominal,
			Duration: nominal,
		})
	}
	return chunks, nil
}
