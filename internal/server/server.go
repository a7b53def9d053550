package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/pipeline"
	"voice-agent-go/internal/report"
	"voice-agent-go/internal/types"
)

const (
	uploadField = "audio"
	xlsxMIME    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Processor is the part of the coordinator the HTTP layer needs.
type Processor interface {
	NewJob(r io.Reader, filename string) (*types.AudioJob, error)
	Process(ctx context.Context, job *types.AudioJob) (*types.PipelineResult, error)
	Discard(job *types.AudioJob)
}

type Server struct {
	proc Processor
	log  *logger.Logger
	// JobTimeout bounds one /process request; zero means no bound.
	JobTimeout time.Duration
}

func New(proc Processor, log *logger.Logger) *Server {
	return &Server{proc: proc, log: log}
}

// Routes returns the service mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Backend is alive"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.log.WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("GET /api/audio", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Audio route works!"})
	})
	mux.HandleFunc("POST /api/audio/upload", s.handleUpload)
	mux.HandleFunc("POST /api/audio/process", s.handleProcess)

	return withCORS(mux)
}

// handleUpload validates and stages an upload, reports what processing
// would do with it, and discards it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "upload")
	job, err := s.receive(r)
	if err != nil {
		s.inputError(w, reqLog, err)
		return
	}
	defer s.proc.Discard(job)

	reqLog.WithFields(logrus.Fields{"job_id": job.ID, "size": job.Size}).Info("upload received")
	writeJSON(w, http.StatusOK, map[string]any{
		"message":               "Audio uploaded successfully",
		"fileName":              job.Filename,
		"size":                  job.Size,
		"requires_segmentation": job.NeedsSegmentation,
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "process")
	reqLog.Info("process request received")

	job, err := s.receive(r)
	if err != nil {
		s.inputError(w, reqLog, err)
		return
	}
	reqLog = reqLog.WithFields(logrus.Fields{"job_id": job.ID, "size": job.Size, "segmented": job.NeedsSegmentation})

	// a started job runs to completion even if the client goes away
	ctx := context.WithoutCancel(r.Context())
	if s.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.proc.Process(ctx, job)
	reqLog = reqLog.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidUpload) {
			s.inputError(w, reqLog, err)
			return
		}
		reqLog.WithField("error", err.Error()).Error("processing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Processing failed"})
		return
	}
	reqLog.WithField("degraded", res.Degraded).Info("processor finished")

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", xlsxMIME)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": job.ID + ".xlsx"}))
		if err := report.Write(w, []report.Entry{{Source: job.Filename, Result: res}}); err != nil {
			reqLog.WithField("error", err.Error()).Error("failed to write report")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

var errNoFile = fmt.Errorf("%w: No file uploaded", pipeline.ErrInvalidUpload)

// receive streams the "audio" part of a multipart request into a new job
// without buffering the whole upload in memory.
func (s *Server) receive(r *http.Request) (*types.AudioJob, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFile
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errNoFile
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrInvalidUpload, err)
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			part.Close()
			continue
		}
		job, err := s.proc.NewJob(part, part.FileName())
		part.Close()
		return job, err
	}
}

func (s *Server) inputError(w http.ResponseWriter, log *logrus.Entry, err error) {
	if !errors.Is(err, pipeline.ErrInvalidUpload) {
		log.WithField("error", err.Error()).Error("upload could not be stored")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Processing failed"})
		return
	}
	log.WithField("error", err.Error()).Warn("rejected upload")
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file uploaded"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+logger.RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
