package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/carahq/cara/internal/task"
	"github.com/spf13/cobra"
)

// deadlineWindow is how close a deadline must be before Cara pushes a
// completion strategy for the task.
const deadlineWindow = 48 * time.Hour

var analyzeCmd = &cobra.Command{
	Use:   "analyze [id]",
	Short: "Let Cara analyze a task",
	Long:  "Summarizes the task, suggests steps to finish it, and — when the\ndeadline is close — proposes a completion strategy drawn from similar finished work.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	s, err := mustStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := resolveTask(s, cfg.Owner, args[0])
	if err != nil {
		return err
	}
	assistant, err := newAssistant(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	summary, err := assistant.Summarize(ctx, t.Description)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	fmt.Printf("Summary: %s\n", strings.TrimSpace(summary))

	steps, err := assistant.SuggestSteps(ctx, t.Description)
	if err != nil {
		return fmt.Errorf("suggest steps: %w", err)
	}
	if len(steps) > 0 {
		fmt.Println("\nSuggested steps:")
		for i, step := range steps {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
	}

	if !deadlineApproaching(*t, time.Now()) {
		return nil
	}

	// One strategy per task: the reminder flag latches after the first.
	if t.ReminderSent {
		return nil
	}

	similar, err := similarCompleted(s, cfg.Owner, *t)
	if err != nil {
		return err
	}
	strategy, err := assistant.CompletionStrategy(ctx, *t, similar)
	if err != nil {
		return fmt.Errorf("completion strategy: %w", err)
	}
	fmt.Printf("\nDeadline %s is close. Cara suggests:\n%s\n",
		t.Deadline.Format(time.DateOnly), strings.TrimSpace(strategy))

	sent := true
	return s.Update(t.ID, task.Patch{ReminderSent: &sent})
}

// deadlineApproaching reports whether the task is unfinished with a deadline
// inside the reminder window. Overdue tasks count as approaching.
func deadlineApproaching(t task.Task, now time.Time) bool {
	if t.Deadline == nil || t.Status == task.StatusCompleted {
		return false
	}
	return t.Deadline.Before(now.Add(deadlineWindow))
}

// similarCompleted collects the owner's finished tasks that share words with
// this one's title, as grounding for the strategy prompt.
func similarCompleted(s storeLister, ownerID string, t task.Task) ([]task.Task, error) {
	all, err := s.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	words := strings.Fields(strings.ToLower(t.Title))
	var similar []task.Task
	for _, other := range all {
		if other.ID == t.ID || other.Status != task.StatusCompleted {
			continue
		}
		title := strings.ToLower(other.Title)
		for _, w := range words {
			if len(w) >= 4 && strings.Contains(title, w) {
				similar = append(similar, other)
				break
			}
		}
	}
	return similar, nil
}

type storeLister interface {
	ListByOwner(ownerID string) ([]task.Task, error)
}
