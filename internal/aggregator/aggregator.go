package aggregator

import (
	"sort"
	"strings"

	"voice-agent-go/internal/types"
)

const unassigned = "(unassigned)"

// Insight summarises many job results. A nil result counts as a failed job.
type Insight struct {
	Jobs               int            `json:"jobs"`
	Failed             int            `json:"failed"`
	Segments           int            `json:"segments"`
	IntentCounts       map[string]int `json:"intent_counts"`
	ActionItemsByOwner map[string]int `json:"action_items_by_owner"`
	DegradedByStage    map[string]int `json:"degraded_by_stage"`
}

func Aggregate(results []*types.PipelineResult) Insight {
	ins := Insight{
		Jobs:               len(results),
		IntentCounts:       map[string]int{},
		ActionItemsByOwner: map[string]int{},
		DegradedByStage:    map[string]int{},
	}
	for _, r := range results {
		if r == nil {
			ins.Failed++
			continue
		}
		ins.Segments += len(r.Segments)
		if r.Intent != "" {
			ins.IntentCounts[r.Intent]++
		}
		for _, a := range r.ActionItems {
			owner := strings.TrimSpace(a.Owner)
			if owner == "" {
				owner = unassigned
			}
			ins.ActionItemsByOwner[owner]++
		}
		for _, st := range r.Degraded {
			ins.DegradedByStage[st]++
		}
	}
	return ins
}

// Count is one key of a count map.
type Count struct {
	Key   string
	Count int
}

// Ranked orders a count map by count, then key, for stable rendering.
func Ranked(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
