// Package assist turns task text into priorities, suggestions, and drafts
// via the inference layer. External output is never trusted: every numeric
// or structured extraction validates, clamps, and falls back.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/carahq/cara/internal/llm"
	"github.com/carahq/cara/internal/task"
)

// DefaultPriority is used whenever the model's answer cannot be parsed.
// Priority estimation never blocks task usability.
const DefaultPriority = 5

// Assistant is the priority estimator and suggestion generator.
type Assistant struct {
	client llm.Client
}

// New creates an assistant over a (typically retrying) inference client.
func New(client llm.Client) *Assistant {
	return &Assistant{client: client}
}

// Estimate is the result of rating a task.
type Estimate struct {
	Priority   int
	Suggestion string // best-effort; empty if the suggestion round trip failed
}

// EstimateTask rates a task's priority in [1,10] and, best-effort, attaches
// a suggested next action. A non-numeric rating falls back to
// DefaultPriority rather than failing; only exhausted retries surface an
// error. A failed suggestion round trip is silently dropped.
func (a *Assistant) EstimateTask(ctx context.Context, t task.Task) (Estimate, error) {
	text, err := a.client.Generate(ctx, priorityPrompt(t))
	if err != nil {
		return Estimate{}, err
	}

	est := Estimate{Priority: parsePriority(text, DefaultPriority)}
	if suggestion, err := a.NextAction(ctx, t); err == nil {
		est.Suggestion = suggestion
	}
	return est, nil
}

// Priority rates the task without generating a suggestion.
func (a *Assistant) Priority(ctx context.Context, t task.Task) (int, error) {
	text, err := a.client.Generate(ctx, priorityPrompt(t))
	if err != nil {
		return 0, err
	}
	return parsePriority(text, DefaultPriority), nil
}

var leadingNumbering = regexp.MustCompile(`^\d+\.\s*`)

// NextAction suggests one short actionable next step for the task.
func (a *Assistant) NextAction(ctx context.Context, t task.Task) (string, error) {
	text, err := a.client.Generate(ctx, nextActionPrompt(t))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(leadingNumbering.ReplaceAllString(text, "")), nil
}

// Summarize produces a short expert summary of a task description.
func (a *Assistant) Summarize(ctx context.Context, description string) (string, error) {
	return a.client.Generate(ctx, summaryPrompt(description))
}

// SuggestSteps returns the model's suggested steps, one per non-empty line.
// The sequence is recomputed on demand, never cached.
func (a *Assistant) SuggestSteps(ctx context.Context, description string) ([]string, error) {
	text, err := a.client.Generate(ctx, stepsPrompt(description))
	if err != nil {
		return nil, err
	}

	var steps []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			steps = append(steps, trimmed)
		}
	}
	return steps, nil
}

// CompletionStrategy generates a strategy for finishing the task, informed
// by similar completed tasks.
func (a *Assistant) CompletionStrategy(ctx context.Context, t task.Task, similar []task.Task) (string, error) {
	return a.client.Generate(ctx, strategyPrompt(t, similar))
}

// StartChat opens a Cara persona chat session with prior history.
func (a *Assistant) StartChat(history []llm.Message) *llm.Session {
	seeded := append([]llm.Message{{Role: llm.RoleUser, Text: caraContext}}, history...)
	return llm.StartChat(a.client, seeded)
}

// Draft is a task extracted from free text, before persistence.
type Draft struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Dealership     string `json:"dealership"`
	InsuranceClaim string `json:"insuranceClaim"`
	AIPriority     int    `json:"aiPriority"`
}

// ExtractTask detects a task in a free-text message. It returns (nil, nil)
// when no task is present — an extraction miss is not an error. The model's
// reply is scanned for the first {...} span; parse failures and drafts
// missing title or description are also treated as misses.
func (a *Assistant) ExtractTask(ctx context.Context, message string) (*Draft, error) {
	text, err := a.client.Generate(ctx, extractPrompt(message))
	if err != nil {
		return nil, err
	}
	return ParseDraft(text), nil
}

// ParseDraft pulls a task draft out of raw model output, or nil if the
// output contains no usable task.
func ParseDraft(text string) *Draft {
	span := braceSpan(text)
	if span == "" {
		return nil
	}

	var d Draft
	if err := json.Unmarshal([]byte(span), &d); err != nil {
		return nil
	}
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Description) == "" {
		return nil
	}

	if d.AIPriority == 0 {
		d.AIPriority = DefaultPriority
	}
	d.AIPriority = task.ClampPriority(d.AIPriority)
	return &d
}

// braceSpan returns the greedy first-{ to last-} span of s, or "".
func braceSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

// parsePriority reads the model's rating as an integer clamped to [1,10],
// falling back when the reply is not a number.
func parsePriority(text string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return fallback
	}
	return task.ClampPriority(n)
}

// SanitizeDraft turns a draft into a persistable task for the given owner:
// fields trimmed, missing title defaulted, priority clamped, status pending.
// The manual order slot is filled by the store at creation time.
func SanitizeDraft(d Draft, ownerID string) (task.Task, error) {
	if ownerID == "" {
		return task.Task{}, fmt.Errorf("sanitize draft: owner id is required")
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = "New Task"
	}
	priority := d.AIPriority
	if priority == 0 {
		priority = DefaultPriority
	}

	return task.Task{
		Title:          title,
		Description:    strings.TrimSpace(d.Description),
		Dealership:     strings.TrimSpace(d.Dealership),
		InsuranceClaim: strings.TrimSpace(d.InsuranceClaim),
		AIPriority:     task.ClampPriority(priority),
		Status:         task.StatusPending,
		AssignedTo:     ownerID,
	}, nil
}
