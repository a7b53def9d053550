package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/dataset"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/pipeline"
	"voice-agent-go/internal/report"
	"voice-agent-go/internal/types"
)

type options struct {
	manifest string
	out      string
	limit    int
	mock     bool
}

func main() {
	_ = godotenv.Load()

	var opts options
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process every recording listed in a manifest workbook and write an xlsx report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&opts.manifest, "manifest", "m", "", "xlsx manifest with an audio path or URL column")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "report.xlsx", "report path")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "process at most N rows (0 = all)")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "return the fixed mock result for every row")
	_ = cmd.MarkFlagRequired("manifest")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg := config.Load()
	if opts.mock {
		cfg.UseMock = true
	}
	log := logger.New()

	records, err := dataset.Load(opts.manifest)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	if opts.limit > 0 && len(records) > opts.limit {
		records = records[:opts.limit]
	}
	log.WithFields(logrus.Fields{"manifest": opts.manifest, "rows": len(records), "mock_mode": cfg.UseMock}).Info("batch started")

	coord := pipeline.FromConfig(cfg, log.Entry)
	fetcher := &http.Client{Timeout: cfg.HTTPTimeout}

	entries := make([]report.Entry, 0, len(records))
	failed := 0
	for _, rec := range records {
		recLog := log.WithFields(logrus.Fields{"row_id": rec.ID, "source": rec.Source})
		start := time.Now()
		res, err := processRecord(ctx, coord, fetcher, rec)
		recLog = recLog.WithField("duration_ms", time.Since(start).Milliseconds())
		if err != nil {
			failed++
			recLog.WithField("error", err.Error()).Error("row failed")
		} else {
			recLog.WithField("degraded", res.Degraded).Info("row processed")
		}
		entries = append(entries, report.Entry{Source: rec.Source, Result: res, Err: err})
	}

	if err := report.Save(opts.out, entries); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.WithFields(logrus.Fields{"out": opts.out, "rows": len(entries), "failed": failed}).Info("batch finished")
	return nil
}

// processRecord stages one manifest row as a job and runs it.
func processRecord(ctx context.Context, coord *pipeline.Coordinator, fetcher *http.Client, rec dataset.Record) (*types.PipelineResult, error) {
	body, name, err := open(ctx, fetcher, rec)
	if err != nil {
		return nil, err
	}
	job, err := coord.NewJob(body, name)
	body.Close()
	if err != nil {
		return nil, err
	}
	return coord.Process(ctx, job)
}

func open(ctx context.Context, fetcher *http.Client, rec dataset.Record) (io.ReadCloser, string, error) {
	if !rec.Remote() {
		f, err := os.Open(rec.Source)
		if err != nil {
			return nil, "", err
		}
		return f, filepath.Base(rec.Source), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.Source, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := fetcher.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("download: status %d", resp.StatusCode)
	}
	return resp.Body, path.Base(req.URL.Path), nil
}
