package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/carahq/cara/internal/llm"
	"github.com/carahq/cara/internal/task"
)

// fakeClient answers by matching a substring of the prompt.
type fakeClient struct {
	byPrompt map[string]string // substring → reply
	fallback string
	err      error
	prompts  []string
}

func (f *fakeClient) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	for sub, reply := range f.byPrompt {
		if strings.Contains(prompt, sub) {
			return reply, nil
		}
	}
	return f.fallback, nil
}

func (f *fakeClient) Chat(ctx context.Context, history []llm.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.fallback, nil
}

func TestEstimateTask_ClampsHighRating(t *testing.T) {
	fc := &fakeClient{byPrompt: map[string]string{
		"rate its priority": "15",
		"next step":         "Call the dealership",
	}}
	a := New(fc)

	est, err := a.EstimateTask(context.Background(), task.Task{Title: "Brakes", Description: "worn"})
	if err != nil {
		t.Fatalf("EstimateTask: %v", err)
	}
	if est.Priority != 10 {
		t.Errorf(`response "15" should clamp to 10, got %d`, est.Priority)
	}
	if est.Suggestion != "Call the dealership" {
		t.Errorf("unexpected suggestion %q", est.Suggestion)
	}
}

func TestEstimateTask_NonNumericFallsBack(t *testing.T) {
	fc := &fakeClient{fallback: "abc"}
	a := New(fc)

	est, err := a.EstimateTask(context.Background(), task.Task{Title: "Oil", Description: "change"})
	if err != nil {
		t.Fatalf("EstimateTask: %v", err)
	}
	if est.Priority != DefaultPriority {
		t.Errorf(`response "abc" should fall back to %d, got %d`, DefaultPriority, est.Priority)
	}
}

func TestPriority_TrimsAndParses(t *testing.T) {
	fc := &fakeClient{fallback: "  7 \n"}
	a := New(fc)

	p, err := a.Priority(context.Background(), task.Task{Title: "x"})
	if err != nil {
		t.Fatalf("Priority: %v", err)
	}
	if p != 7 {
		t.Errorf("expected 7, got %d", p)
	}
}

func TestPriority_InferenceErrorSurfaces(t *testing.T) {
	fc := &fakeClient{err: errors.New("model down")}
	a := New(fc)

	if _, err := a.Priority(context.Background(), task.Task{Title: "x"}); err == nil {
		t.Fatal("expected error to surface")
	}
}

func TestEstimateTask_PromptEmbedsMetadata(t *testing.T) {
	fc := &fakeClient{fallback: "5"}
	a := New(fc)

	_, err := a.Priority(context.Background(), task.Task{
		Title: "Bumper", Description: "rear bumper dent",
		Dealership: "Main St Motors", InsuranceClaim: "A123",
	})
	if err != nil {
		t.Fatalf("Priority: %v", err)
	}
	p := fc.prompts[0]
	for _, want := range []string{"Bumper", "rear bumper dent", "Main St Motors", "A123"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestNextAction_StripsLeadingNumbering(t *testing.T) {
	fc := &fakeClient{fallback: "1. Order the replacement part  "}
	a := New(fc)

	got, err := a.NextAction(context.Background(), task.Task{Title: "x"})
	if err != nil {
		t.Fatalf("NextAction: %v", err)
	}
	if got != "Order the replacement part" {
		t.Errorf("expected numbering stripped, got %q", got)
	}
}

func TestSuggestSteps_SplitsNonEmptyLines(t *testing.T) {
	fc := &fakeClient{fallback: "Step one\n\n  Step two  \nStep three\n"}
	a := New(fc)

	steps, err := a.SuggestSteps(context.Background(), "replace alternator")
	if err != nil {
		t.Fatalf("SuggestSteps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %v", len(steps), steps)
	}
	if steps[1] != "Step two" {
		t.Errorf("expected trimmed 'Step two', got %q", steps[1])
	}
}

func TestParseDraft_JSONEmbeddedInProse(t *testing.T) {
	text := "Sure! Here is the task:\n```json\n" +
		`{"title":"Brake pads","description":"brake pads worn","dealership":"Main St Motors","insuranceClaim":"A123","aiPriority":8}` +
		"\n```\nLet me know if you need anything else."

	d := ParseDraft(text)
	if d == nil {
		t.Fatal("expected a draft")
	}
	if d.Dealership != "Main St Motors" {
		t.Errorf("expected dealership 'Main St Motors', got %q", d.Dealership)
	}
	if d.InsuranceClaim != "A123" {
		t.Errorf("expected claim 'A123', got %q", d.InsuranceClaim)
	}
	if d.AIPriority != 8 {
		t.Errorf("expected priority 8, got %d", d.AIPriority)
	}
}

func TestParseDraft_Misses(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"no braces", "I don't see a task here, just a question."},
		{"null reply", "null"},
		{"unparseable span", "{this is not json}"},
		{"missing description", `{"title":"Just a title"}`},
		{"missing title", `{"description":"orphan description"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if d := ParseDraft(c.text); d != nil {
				t.Errorf("expected miss, got %+v", d)
			}
		})
	}
}

func TestParseDraft_DefaultsAndClampsPriority(t *testing.T) {
	d := ParseDraft(`{"title":"t","description":"d"}`)
	if d == nil || d.AIPriority != DefaultPriority {
		t.Errorf("expected default priority %d, got %+v", DefaultPriority, d)
	}

	d = ParseDraft(`{"title":"t","description":"d","aiPriority":42}`)
	if d == nil || d.AIPriority != 10 {
		t.Errorf("expected clamp to 10, got %+v", d)
	}
}

func TestExtractTask_EndToEnd(t *testing.T) {
	fc := &fakeClient{byPrompt: map[string]string{
		"Extract task information": `{"title":"Replace brake pads","description":"brake pads worn","dealership":"Main St Motors","insuranceClaim":"A123","aiPriority":9}`,
	}}
	a := New(fc)

	d, err := a.ExtractTask(context.Background(), "brake pads worn, dealership Main St Motors, claim #A123")
	if err != nil {
		t.Fatalf("ExtractTask: %v", err)
	}
	if d == nil {
		t.Fatal("expected a draft")
	}
	if d.Dealership != "Main St Motors" || d.InsuranceClaim != "A123" {
		t.Errorf("unexpected draft: %+v", d)
	}

	created, err := SanitizeDraft(*d, "user-1")
	if err != nil {
		t.Fatalf("SanitizeDraft: %v", err)
	}
	if created.Status != task.StatusPending {
		t.Errorf("expected pending status, got %s", created.Status)
	}
	if created.AIPriority < 1 || created.AIPriority > 10 {
		t.Errorf("priority outside [1,10]: %d", created.AIPriority)
	}
	if created.AssignedTo != "user-1" {
		t.Errorf("expected owner user-1, got %q", created.AssignedTo)
	}
}

func TestSanitizeDraft_DefaultsTitle(t *testing.T) {
	got, err := SanitizeDraft(Draft{Description: "  something  "}, "u")
	if err != nil {
		t.Fatalf("SanitizeDraft: %v", err)
	}
	if got.Title != "New Task" {
		t.Errorf("expected default title, got %q", got.Title)
	}
	if got.Description != "something" {
		t.Errorf("expected trimmed description, got %q", got.Description)
	}
	if got.AIPriority != DefaultPriority {
		t.Errorf("expected default priority, got %d", got.AIPriority)
	}
}

func TestSanitizeDraft_RequiresOwner(t *testing.T) {
	if _, err := SanitizeDraft(Draft{Title: "t", Description: "d"}, ""); err == nil {
		t.Error("expected error without owner")
	}
}

func TestCompletionStrategy_OnlyCompletedSimilarTasks(t *testing.T) {
	fc := &fakeClient{fallback: "do it early"}
	a := New(fc)

	similar := []task.Task{
		{Title: "Done one", Description: "finished", Status: task.StatusCompleted},
		{Title: "Pending one", Description: "not yet", Status: task.StatusPending},
	}
	_, err := a.CompletionStrategy(context.Background(), task.Task{Title: "x", Description: "y"}, similar)
	if err != nil {
		t.Fatalf("CompletionStrategy: %v", err)
	}

	p := fc.prompts[0]
	if !strings.Contains(p, "Done one") {
		t.Error("prompt should include completed similar task")
	}
	if strings.Contains(p, "Pending one") {
		t.Error("prompt should exclude non-completed similar task")
	}
}
