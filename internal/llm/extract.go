package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a completion contains no parseable JSON value.
var ErrNoJSON = errors.New("llm: no JSON found in output")

// ExtractJSON returns the JSON object or array starting at the first bracket
// of s. It strips the markdown fences models like to wrap their answers in.
func ExtractJSON(s string) (json.RawMessage, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}
	// only the outermost value counts; a truncated reply must not yield
	// one of its nested fragments
	end := balancedEnd(s, start)
	if end < 0 {
		return nil, ErrNoJSON
	}
	candidate := strings.TrimSpace(s[start : end+1])
	if !json.Valid([]byte(candidate)) {
		return nil, ErrNoJSON
	}
	return json.RawMessage(candidate), nil
}

// balancedEnd returns the index of the bracket closing the one at start, or
// -1. Brackets inside string literals are ignored.
func balancedEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
