package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/llm"
	"voice-agent-go/internal/types"
)

// Sentinels distinguish "the service was unavailable" from "no entities".
const (
	NoNames        = "No names found"
	NoDates        = "No dates found"
	NoPhoneNumbers = "No phone numbers found"
)

const systemPrompt = `Extract entities. Return only JSON in this format:
{"names": [], "dates": [], "phone_numbers": []}`

type Extractor struct {
	llm llm.Completer
	log *logrus.Entry
}

func NewExtractor(c llm.Completer, log *logrus.Entry) *Extractor {
	return &Extractor{llm: c, log: log.WithField("component", "entities")}
}

// Unavailable is the result reported when extraction failed outright.
func Unavailable() types.EntityResult {
	return types.EntityResult{
		Names:        []string{NoNames},
		Dates:        []string{NoDates},
		PhoneNumbers: []string{NoPhoneNumbers},
	}
}

// Extract never fails; call or parse errors yield Unavailable(). The bool
// reports whether that happened.
func (e *Extractor) Extract(ctx context.Context, transcript string) (types.EntityResult, bool) {
	content, err := e.llm.Complete(ctx, llm.Request{
		System:   systemPrompt,
		User:     "Transcript: " + transcript,
		JSONMode: true,
	})
	if err != nil {
		e.log.WithField("error", err.Error()).Warn("entity call failed")
		return Unavailable(), true
	}
	res, err := Parse(content)
	if err != nil {
		e.log.WithField("error", err.Error()).Warn("entity response unusable")
		return Unavailable(), true
	}
	return res, false
}

// Parse requires a JSON object. A missing or non-list field means genuinely
// nothing was found and becomes an empty list.
func Parse(content string) (types.EntityResult, error) {
	raw, err := llm.ExtractJSON(content)
	if err != nil {
		return types.EntityResult{}, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return types.EntityResult{}, fmt.Errorf("entities: not an object: %w", err)
	}
	return types.EntityResult{
		Names:        stringList(obj["names"]),
		Dates:        stringList(obj["dates"]),
		PhoneNumbers: stringList(obj["phone_numbers"]),
	}, nil
}

// stringList keeps the non-empty string elements of a JSON list.
func stringList(raw json.RawMessage) []string {
	out := []string{}
	var elems []any
	if err := json.Unmarshal(raw, &elems); err != nil {
		return out
	}
	for _, el := range elems {
		if s, ok := el.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
