// Package report renders pipeline results as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"voice-agent-go/internal/aggregator"
	"voice-agent-go/internal/types"
)

const (
	SheetOverview   = "Overview"
	SheetTranscript = "Transcript"
	SheetSpeakers   = "Speakers"
	SheetInsights   = "Insights"
	SheetEntities   = "Entities"
)

// Entry is one job in a report. Err is set and Result nil for failed jobs.
type Entry struct {
	Source string
	Result *types.PipelineResult
	Err    error
}

var headers = map[string][]any{
	SheetOverview:   {"source", "status", "intent", "segments", "action_items", "degraded"},
	SheetTranscript: {"source", "id", "start", "end", "text"},
	SheetSpeakers:   {"source", "id", "speaker", "start", "end", "text"},
	SheetInsights:   {"source", "kind", "text", "owner", "due_date"},
	SheetEntities:   {"source", "type", "value"},
}

var sheetOrder = []string{SheetOverview, SheetTranscript, SheetSpeakers, SheetInsights, SheetEntities}

// sheetWriter appends rows to one sheet.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func (s *sheetWriter) add(values ...any) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	return s.f.SetSheetRow(s.sheet, cell, &values)
}

// Build creates the workbook. The caller closes it.
func Build(entries []Entry) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	sheets := map[string]*sheetWriter{}
	for i, name := range sheetOrder {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
		sw := &sheetWriter{f: f, sheet: name}
		if err := sw.add(headers[name]...); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
			f.Close()
			return nil, err
		}
		sheets[name] = sw
	}

	results := make([]*types.PipelineResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, e.Result)
		if err := writeEntry(sheets, e); err != nil {
			f.Close()
			return nil, fmt.Errorf("report %s: %w", e.Source, err)
		}
	}
	if err := writeTotals(sheets[SheetOverview], aggregator.Aggregate(results)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, entries []Entry) error {
	f, err := Build(entries)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Save writes the workbook to path.
func Save(path string, entries []Entry) error {
	f, err := Build(entries)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func writeEntry(sheets map[string]*sheetWriter, e Entry) error {
	ov := sheets[SheetOverview]
	if e.Result == nil {
		status := "failed"
		if e.Err != nil {
			status = "failed: " + e.Err.Error()
		}
		return ov.add(e.Source, status)
	}
	r := e.Result
	if err := ov.add(e.Source, "completed", r.Intent, len(r.Segments), len(r.ActionItems), strings.Join(r.Degraded, ",")); err != nil {
		return err
	}

	for _, s := range r.Segments {
		if err := sheets[SheetTranscript].add(e.Source, s.ID, s.Start, s.End, s.Text); err != nil {
			return err
		}
	}
	for _, s := range r.SpeakerSegments {
		if err := sheets[SheetSpeakers].add(e.Source, s.ID, s.Speaker, s.Start, s.End, s.Text); err != nil {
			return err
		}
	}

	ins := sheets[SheetInsights]
	for _, line := range r.Summary.Lines() {
		if err := ins.add(e.Source, "summary", line); err != nil {
			return err
		}
	}
	for _, a := range r.ActionItems {
		if err := ins.add(e.Source, "action_item", a.Task, a.Owner, a.DueDate); err != nil {
			return err
		}
	}
	if err := ins.add(e.Source, "intent", r.Intent); err != nil {
		return err
	}

	ent := sheets[SheetEntities]
	for _, group := range []struct {
		kind   string
		values []string
	}{
		{"name", r.Entities.Names},
		{"date", r.Entities.Dates},
		{"phone_number", r.Entities.PhoneNumbers},
	} {
		for _, v := range group.values {
			if err := ent.add(e.Source, group.kind, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeTotals(ov *sheetWriter, ins aggregator.Insight) error {
	ov.row++ // blank separator
	rows := [][]any{
		{"jobs", ins.Jobs},
		{"failed", ins.Failed},
		{"segments", ins.Segments},
	}
	for _, c := range aggregator.Ranked(ins.IntentCounts) {
		rows = append(rows, []any{"intent", c.Key, c.Count})
	}
	for _, c := range aggregator.Ranked(ins.ActionItemsByOwner) {
		rows = append(rows, []any{"action_items_owner", c.Key, c.Count})
	}
	for _, c := range aggregator.Ranked(ins.DegradedByStage) {
		rows = append(rows, []any{"degraded_stage", c.Key, c.Count})
	}
	for _, r := range rows {
		if err := ov.add(r...); err != nil {
			return err
		}
	}
	return nil
}
