package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrEmptyManifest = errors.New("manifest has no usable rows")

// Record is one audio source listed in a batch manifest.
type Record struct {
	ID     string
	Source string
}

// Remote reports whether the source must be downloaded.
func (r Record) Remote() bool {
	l := strings.ToLower(r.Source)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Load reads the first sheet of an xlsx manifest. The source column is
// found by header heuristics; rows without a source are skipped.
func Load(path string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, ErrEmptyManifest
	}

	srcIdx, idIdx := columns(rows[0])
	if srcIdx == -1 {
		return nil, fmt.Errorf("no audio column in header %q", rows[0])
	}

	var out []Record
	for i, r := range rows[1:] {
		rec := Record{ID: strconv.Itoa(i + 1)}
		if srcIdx < len(r) {
			rec.Source = strings.TrimSpace(r[srcIdx])
		}
		if idIdx >= 0 && idIdx < len(r) && strings.TrimSpace(r[idIdx]) != "" {
			rec.ID = strings.TrimSpace(r[idIdx])
		}
		if rec.Source == "" {
			continue
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, ErrEmptyManifest
	}
	return out, nil
}

func columns(header []string) (srcIdx, idIdx int) {
	srcIdx, idIdx = -1, -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "audio") || strings.Contains(l, "url") || strings.Contains(l, "path") || strings.Contains(l, "file"):
			if srcIdx == -1 {
				srcIdx = i
			}
		case l == "id" || strings.HasSuffix(l, " id") || strings.HasSuffix(l, "_id") || strings.Contains(l, "name"):
			if idIdx == -1 {
				idIdx = i
			}
		}
	}
	// single column manifests are just a list of sources
	if srcIdx == -1 && len(header) == 1 {
		srcIdx = 0
	}
	return srcIdx, idIdx
}
