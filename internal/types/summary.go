package types

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Summary is either a flat list of strings or a structured object (for
// example dated, person-attributed updates) that is passed through verbatim.
type Summary struct {
	Items      []string
	Structured json.RawMessage
}

// SummaryOf builds a flat summary.
func SummaryOf(items ...string) Summary {
	if items == nil {
		items = []string{}
	}
	return Summary{Items: items}
}

// IsStructured reports whether the summary carries a structured object.
func (s Summary) IsStructured() bool { return len(s.Structured) > 0 }

func (s Summary) MarshalJSON() ([]byte, error) {
	if s.IsStructured() {
		return s.Structured, nil
	}
	if s.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Items)
}

// UnmarshalJSON normalises whatever shape the value arrives in. A string is
// wrapped into a one-element list, an all-string array becomes the list and
// any other object or array is kept as structured content. Everything else
// yields an empty list.
func (s *Summary) UnmarshalJSON(data []byte) error {
	*s = normalizeSummary(data)
	return nil
}

func normalizeSummary(data []byte) Summary {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return SummaryOf()
	}
	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil || strings.TrimSpace(str) == "" {
			return SummaryOf()
		}
		return SummaryOf(str)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err == nil {
			return SummaryOf(items...)
		}
		if json.Valid(data) {
			return Summary{Structured: append(json.RawMessage(nil), data...)}
		}
	case '{':
		if json.Valid(data) {
			return Summary{Structured: append(json.RawMessage(nil), data...)}
		}
	}
	return SummaryOf()
}

// Lines flattens the summary for plain-text renderers.
func (s Summary) Lines() []string {
	if !s.IsStructured() {
		return s.Items
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, s.Structured, "", "  "); err != nil {
		return []string{string(s.Structured)}
	}
	return strings.Split(buf.String(), "\n")
}
