package insights

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"voice-agent-go/internal/llm"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

type fakeCompleter struct {
	content string
	err     error
	req     llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.req = req
	return f.content, f.err
}

func extract(t *testing.T, content string, err error) (types.InsightResult, bool) {
	t.Helper()
	fc := &fakeCompleter{content: content, err: err}
	return NewExtractor(fc, logger.Discard().Entry).Extract(context.Background(), "hello")
}

func assertEmpty(t *testing.T, res types.InsightResult) {
	t.Helper()
	if res.Summary.IsStructured() || len(res.Summary.Items) != 0 || res.Summary.Items == nil {
		t.Errorf("summary = %+v, want []", res.Summary)
	}
	if res.ActionItems == nil || len(res.ActionItems) != 0 {
		t.Errorf("action_items = %#v, want []", res.ActionItems)
	}
	if res.Intent != UnknownIntent {
		t.Errorf("intent = %q, want Unknown", res.Intent)
	}
}

func TestExtract_Unparseable(t *testing.T) {
	for _, content := range []string{
		"",
		"Sorry, I can't help with that.",
		"[1, 2, 3]",
		"{broken",
		`{"meta": {"model": "x"}, "summary": ["Budget approved"`,
	} {
		res, degraded := extract(t, content, nil)
		if !degraded {
			t.Errorf("%q: degraded = false", content)
		}
		assertEmpty(t, res)
	}
}

func TestExtract_CallFailure(t *testing.T) {
	res, degraded := extract(t, "", errors.New("timeout"))
	if !degraded {
		t.Error("degraded = false")
	}
	assertEmpty(t, res)
}

func TestExtract_EmptyResultSerialisesAsEmptyContainers(t *testing.T) {
	res, _ := extract(t, "nope", nil)
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"summary":[],"action_items":[],"intent":"Unknown"}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}

func TestExtract_WellFormed(t *testing.T) {
	content := `{
		"summary": ["Weekly standup meeting held with team updates"],
		"action_items": [{"task": "Finish integration", "owner": "John", "due_date": "Friday"}],
		"intent": "Task Management"
	}`
	res, degraded := extract(t, content, nil)
	if degraded {
		t.Fatal("degraded = true")
	}
	if !reflect.DeepEqual(res.Summary.Items, []string{"Weekly standup meeting held with team updates"}) {
		t.Errorf("summary = %+v", res.Summary)
	}
	want := []types.ActionItem{{Task: "Finish integration", Owner: "John", DueDate: "Friday"}}
	if !reflect.DeepEqual(res.ActionItems, want) {
		t.Errorf("action_items = %+v, want %+v", res.ActionItems, want)
	}
	if res.Intent != "Task Management" {
		t.Errorf("intent = %q", res.Intent)
	}
}

func TestParse_SummaryShapes(t *testing.T) {
	t.Run("string is wrapped", func(t *testing.T) {
		res, err := Parse(`{"summary":"Budget approved","intent":"Planning"}`)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(res.Summary.Items, []string{"Budget approved"}) {
			t.Errorf("summary = %+v", res.Summary)
		}
	})
	t.Run("structured object passes through", func(t *testing.T) {
		obj := `{"2024-05-01":{"Sarah":["shipped the API"],"John":["fixed login"]}}`
		res, err := Parse(`{"summary":` + obj + `}`)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Summary.IsStructured() {
			t.Fatalf("summary not structured: %+v", res.Summary)
		}
		b, _ := json.Marshal(res.Summary)
		if string(b) != obj {
			t.Errorf("summary json = %s, want %s", b, obj)
		}
	})
	t.Run("missing fields default", func(t *testing.T) {
		res, err := Parse(`{}`)
		if err != nil {
			t.Fatal(err)
		}
		assertEmpty(t, res)
	})
	t.Run("wrong types default per field", func(t *testing.T) {
		res, err := Parse(`{"summary": 42, "action_items": "call Bob", "intent": ["x"]}`)
		if err != nil {
			t.Fatal(err)
		}
		assertEmpty(t, res)
	})
}

func TestParse_ActionItemVariants(t *testing.T) {
	res, err := Parse("```json\n" + `{"action_items": [
		"Email the client",
		{"task": "Book room", "owner": "Ana"},
		{"owner": "nobody"},
		{"task": "Renew licence", "owner": "Ops", "due": "2024-06-01"},
		7
	]}` + "\n```")
	if err != nil {
		t.Fatal(err)
	}
	want := []types.ActionItem{
		{Task: "Email the client"},
		{Task: "Book room", Owner: "Ana"},
		{Task: "Renew licence", Owner: "Ops", DueDate: "2024-06-01"},
	}
	if !reflect.DeepEqual(res.ActionItems, want) {
		t.Errorf("action_items = %+v, want %+v", res.ActionItems, want)
	}
}

func TestExtract_PromptCarriesTranscript(t *testing.T) {
	fc := &fakeCompleter{content: `{}`}
	NewExtractor(fc, logger.Discard().Entry).Extract(context.Background(), "we ship on Friday")
	if !strings.Contains(fc.req.User, "we ship on Friday") {
		t.Errorf("user prompt = %q", fc.req.User)
	}
	if !fc.req.JSONMode {
		t.Error("JSONMode = false")
	}
}
