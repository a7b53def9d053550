package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/llm"
	"voice-agent-go/internal/types"
)

// UnknownIntent is reported whenever the model gives no usable intent.
const UnknownIntent = "Unknown"

const systemPrompt = `You are an assistant that extracts structured insights from transcripts.
Return ONLY a JSON object with exactly these keys:
  "summary": a list of short strings, or an object of dated updates keyed by person,
  "action_items": a list of objects {"task": string, "owner": string, "due_date": string or omitted},
  "intent": a short label for the purpose of the conversation.
No markdown, no code fences, no commentary.`

type Extractor struct {
	llm llm.Completer
	log *logrus.Entry
}

func NewExtractor(c llm.Completer, log *logrus.Entry) *Extractor {
	return &Extractor{llm: c, log: log.WithField("component", "insights")}
}

// Empty is the result used when nothing usable came back.
func Empty() types.InsightResult {
	return types.InsightResult{
		Summary:     types.SummaryOf(),
		ActionItems: []types.ActionItem{},
		Intent:      UnknownIntent,
	}
}

// Extract never fails: call and parse errors both yield Empty(). The bool
// reports whether that happened.
func (e *Extractor) Extract(ctx context.Context, transcript string) (types.InsightResult, bool) {
	content, err := e.llm.Complete(ctx, llm.Request{
		System:   systemPrompt,
		User:     fmt.Sprintf("Transcript: %s. Return JSON with summary, action_items, and intent.", transcript),
		JSONMode: true,
	})
	if err != nil {
		e.log.WithField("error", err.Error()).Warn("insight call failed")
		return Empty(), true
	}
	res, err := Parse(content)
	if err != nil {
		e.log.WithField("error", err.Error()).Warn("insight response unusable")
		return Empty(), true
	}
	return res, false
}

// Parse validates a model response. It must contain a JSON object; each
// field is then normalised on its own so one bad field never discards the
// others.
func Parse(content string) (types.InsightResult, error) {
	raw, err := llm.ExtractJSON(content)
	if err != nil {
		return types.InsightResult{}, err
	}
	var obj struct {
		Summary     json.RawMessage `json:"summary"`
		ActionItems json.RawMessage `json:"action_items"`
		Intent      json.RawMessage `json:"intent"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return types.InsightResult{}, fmt.Errorf("insights: not an object: %w", err)
	}

	res := Empty()
	if len(obj.Summary) > 0 {
		if err := json.Unmarshal(obj.Summary, &res.Summary); err != nil {
			res.Summary = types.SummaryOf()
		}
	}
	res.ActionItems = parseActionItems(obj.ActionItems)
	var intent string
	if json.Unmarshal(obj.Intent, &intent) == nil && strings.TrimSpace(intent) != "" {
		res.Intent = strings.TrimSpace(intent)
	}
	return res, nil
}

// parseActionItems keeps list order. Plain strings become tasks without an
// owner; elements with no task are dropped.
func parseActionItems(raw json.RawMessage) []types.ActionItem {
	items := []types.ActionItem{}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return items
	}
	for _, el := range elems {
		var task string
		if json.Unmarshal(el, &task) == nil {
			if task = strings.TrimSpace(task); task != "" {
				items = append(items, types.ActionItem{Task: task})
			}
			continue
		}
		var obj map[string]any
		if json.Unmarshal(el, &obj) != nil {
			continue
		}
		item := types.ActionItem{
			Task:    stringField(obj, "task"),
			Owner:   stringField(obj, "owner"),
			DueDate: stringField(obj, "due_date", "due"),
		}
		if item.Task != "" {
			items = append(items, item)
		}
	}
	return items
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64, bool:
			return fmt.Sprint(v)
		}
	}
	return ""
}
