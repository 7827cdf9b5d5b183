package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carahq/cara/internal/config"
	"github.com/carahq/cara/internal/store"
	"github.com/carahq/cara/internal/task"
	"github.com/spf13/cobra"
)

var (
	addDescription string
	addDealership  string
	addClaim       string
	addDeadline    string
	addEvery       string
	addInterval    int
	addDays        []int
	addDayOfMonth  int
	addUntil       string
	addNoAI        bool

	listStatus      string
	listSearch      string
	listDealership  string
	listInsurance   string
	listMinPriority int
	listSort        string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create or manage tasks",
	Long:  "Create a new task or manage existing ones.",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, filtered and sorted",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskStartCmd = &cobra.Command{
	Use:   "start [id]",
	Short: "Mark a task as in progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskStart,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [id]",
	Short: "Mark a task as completed",
	Long:  "Marks a task as completed. A recurring task schedules its next occurrence.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a task permanently",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var taskReorderCmd = &cobra.Command{
	Use:   "reorder [id] [position]",
	Short: "Move a task to a manual order slot",
	Long:  "Gives the task the target order value. Tasks at or after that slot shift down by one.",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskReorder,
}

func init() {
	taskAddCmd.Flags().StringVarP(&addDescription, "desc", "d", "", "Task description")
	taskAddCmd.Flags().StringVar(&addDealership, "dealership", "", "Dealership the task belongs to")
	taskAddCmd.Flags().StringVar(&addClaim, "claim", "", "Insurance claim number")
	taskAddCmd.Flags().StringVar(&addDeadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	taskAddCmd.Flags().StringVar(&addEvery, "every", "", "Recurrence: daily, weekly, monthly")
	taskAddCmd.Flags().IntVar(&addInterval, "interval", 1, "Recurrence interval (every N periods)")
	taskAddCmd.Flags().IntSliceVar(&addDays, "days", nil, "Weekly recurrence weekdays (0=Sunday .. 6=Saturday)")
	taskAddCmd.Flags().IntVar(&addDayOfMonth, "day-of-month", 0, "Monthly recurrence day (clamped to short months)")
	taskAddCmd.Flags().StringVar(&addUntil, "until", "", "Recurrence end date (YYYY-MM-DD)")
	taskAddCmd.Flags().BoolVar(&addNoAI, "no-ai", false, "Skip priority estimation")

	taskListCmd.Flags().StringVarP(&listStatus, "status", "s", "all", "Filter: pending, in-progress, completed, all")
	taskListCmd.Flags().StringVar(&listSearch, "search", "", "Case-insensitive title/description search")
	taskListCmd.Flags().StringVar(&listDealership, "dealership", "", "Only tasks for this dealership")
	taskListCmd.Flags().StringVar(&listInsurance, "insurance", "", "Insurance filter: required, absent")
	taskListCmd.Flags().IntVar(&listMinPriority, "min-priority", 0, "Only tasks rated at least this")
	taskListCmd.Flags().StringVar(&listSort, "sort", "priority", "Sort: priority, date, status")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskStartCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskReorderCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	s, err := mustStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	t := task.Task{
		Title:          strings.Join(args, " "),
		Description:    addDescription,
		Dealership:     addDealership,
		InsuranceClaim: addClaim,
		AssignedTo:     cfg.Owner,
	}

	if addDeadline != "" {
		deadline, err := time.Parse(time.DateOnly, addDeadline)
		if err != nil {
			return fmt.Errorf("invalid deadline %q (want YYYY-MM-DD)", addDeadline)
		}
		t.Deadline = &deadline
	}

	if addEvery != "" {
		rule, err := buildRecurrence(t.Deadline)
		if err != nil {
			return err
		}
		t.Recurrence = rule
	}

	created, err := s.Create(t)
	if err != nil {
		return err
	}
	fmt.Printf("Created task %s: %s\n", shortID(created.ID), created.Title)

	if !addNoAI {
		if err := estimateInline(cmd.Context(), cfg, s, created); err != nil {
			// Rating is best-effort; the task is already usable.
			fmt.Printf("  Priority estimation failed: %v\n", err)
		}
	}
	return nil
}

// buildRecurrence assembles the rule from the add flags, anchoring the first
// due date on the deadline when one is set.
func buildRecurrence(deadline *time.Time) (*task.RecurrenceRule, error) {
	var freq task.Frequency
	switch addEvery {
	case "daily":
		freq = task.FreqDaily
	case "weekly":
		freq = task.FreqWeekly
	case "monthly":
		freq = task.FreqMonthly
	default:
		return nil, fmt.Errorf("invalid recurrence %q (daily, weekly, monthly)", addEvery)
	}
	for _, d := range addDays {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %d (0=Sunday .. 6=Saturday)", d)
		}
	}

	rule := &task.RecurrenceRule{
		Frequency:  freq,
		Interval:   addInterval,
		DaysOfWeek: addDays,
		DayOfMonth: addDayOfMonth,
	}
	if addUntil != "" {
		end, err := time.Parse(time.DateOnly, addUntil)
		if err != nil {
			return nil, fmt.Errorf("invalid end date %q (want YYYY-MM-DD)", addUntil)
		}
		rule.EndDate = &end
	}

	anchor := time.Now()
	if deadline != nil {
		anchor = *deadline
	}
	next := task.NextDueDate(*rule, anchor)
	rule.NextDue = &next
	return rule, nil
}

// estimateInline rates the freshly created task and writes the result back.
func estimateInline(ctx context.Context, cfg *config.Config, s *store.Store, created *task.Task) error {
	assistant, err := newAssistant(cfg)
	if err != nil {
		return err
	}

	est, err := assistant.EstimateTask(ctx, *created)
	if err != nil {
		return err
	}

	patch := task.Patch{AIPriority: &est.Priority}
	if est.Suggestion != "" {
		patch.AISuggestion = &est.Suggestion
	}
	if err := s.Update(created.ID, patch); err != nil {
		return err
	}

	fmt.Printf("  Priority: %d/10\n", est.Priority)
	if est.Suggestion != "" {
		fmt.Printf("  Next step: %s\n", est.Suggestion)
	}
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	s, err := mustStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := s.ListByOwner(cfg.Owner)
	if err != nil {
		return err
	}

	filter := task.FilterSpec{
		Status:      task.Status(listStatus),
		Search:      listSearch,
		Dealership:  listDealership,
		MinPriority: listMinPriority,
	}
	switch listInsurance {
	case "":
	case "required":
		filter.Insurance = task.InsuranceRequired
	case "absent":
		filter.Insurance = task.InsuranceAbsent
	default:
		return fmt.Errorf("invalid insurance filter %q (required, absent)", listInsurance)
	}

	var key task.SortKey
	switch listSort {
	case "priority":
		key = task.SortByPriority
	case "date":
		key = task.SortByDate
	case "status":
		key = task.SortByStatus
	default:
		return fmt.Errorf("invalid sort %q (priority, date, status)", listSort)
	}

	tasks = task.Apply(tasks, filter, key)
	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	for _, t := range tasks {
		claim := ""
		if t.InsuranceClaim != "" {
			claim = fmt.Sprintf(" claim:%s", t.InsuranceClaim)
		}
		recurring := ""
		if t.Recurrence != nil {
			recurring = " ↻"
		}
		fmt.Printf("%s  %-12s P%s  %s%s%s\n",
			shortID(t.ID), t.Status, priorityLabel(t), t.Title, claim, recurring)
	}
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Task %s\n", t.ID)
	fmt.Printf("  Title:      %s\n", t.Title)
	fmt.Printf("  Status:     %s\n", t.Status)
	if t.HasPriority() {
		fmt.Printf("  Priority:   %d/10\n", t.AIPriority)
	}
	if t.AISuggestion != "" {
		fmt.Printf("  Next step:  %s\n", t.AISuggestion)
	}
	if t.Description != "" {
		fmt.Printf("  Desc:       %s\n", t.Description)
	}
	if t.Dealership != "" {
		fmt.Printf("  Dealership: %s\n", t.Dealership)
	}
	if t.InsuranceClaim != "" {
		fmt.Printf("  Claim:      %s\n", t.InsuranceClaim)
	}
	if t.Deadline != nil {
		fmt.Printf("  Deadline:   %s\n", t.Deadline.Format(time.DateOnly))
	}
	if t.Recurrence != nil {
		fmt.Printf("  Repeats:    every %d %s\n", t.Recurrence.Interval, t.Recurrence.Frequency)
		if t.Recurrence.NextDue != nil {
			fmt.Printf("  Next due:   %s\n", t.Recurrence.NextDue.Format(time.DateOnly))
		}
	}
	fmt.Printf("  Created:    %s\n", t.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("  Updated:    %s\n", t.UpdatedAt.Format("2006-01-02 15:04"))
	return nil
}

func runTaskStart(cmd *cobra.Command, args []string) error {
	return setStatus(args[0], task.StatusInProgress, "Task %s started: %s\n")
}

func runTaskDone(cmd *cobra.Command, args []string) error {
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

	status := task.StatusCompleted
	if err := s.Update(t.ID, task.Patch{Status: &status}); err != nil {
		return err
	}
	fmt.Printf("Task %s completed: %s\n", shortID(t.ID), t.Title)

	// A live recurrence spawns the next occurrence as a fresh pending task.
	if t.Recurrence != nil && !t.Recurrence.Expired(time.Now()) {
		next, err := spawnNextOccurrence(s, *t)
		if err != nil {
			return fmt.Errorf("schedule next occurrence: %w", err)
		}
		fmt.Printf("  Next occurrence %s due %s\n",
			shortID(next.ID), next.Deadline.Format(time.DateOnly))
	}
	return nil
}

// spawnNextOccurrence creates the follow-up task for a completed recurring
// task, with the deadline advanced by the rule.
func spawnNextOccurrence(s *store.Store, done task.Task) (*task.Task, error) {
	anchor := time.Now()
	if done.Recurrence.NextDue != nil {
		anchor = *done.Recurrence.NextDue
	} else if done.Deadline != nil {
		anchor = *done.Deadline
	}
	due := task.NextDueDate(*done.Recurrence, anchor)

	rule := *done.Recurrence
	rule.NextDue = &due

	next := task.Task{
		Title:          done.Title,
		Description:    done.Description,
		Dealership:     done.Dealership,
		InsuranceClaim: done.InsuranceClaim,
		AssignedTo:     done.AssignedTo,
		Status:         task.StatusPending,
		Deadline:       &due,
		Recurrence:     &rule,
	}
	return s.Create(next)
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
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
	if err := s.Delete(t.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted task %s: %s\n", shortID(t.ID), t.Title)
	return nil
}

func runTaskReorder(cmd *cobra.Command, args []string) error {
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
	target, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid position: %s", args[1])
	}

	if err := s.Reorder(cfg.Owner, t.ID, target); err != nil {
		return err
	}
	fmt.Printf("Moved task %s to position %d\n", shortID(t.ID), target)
	return nil
}

func setStatus(idPrefix string, status task.Status, format string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	s, err := mustStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := resolveTask(s, cfg.Owner, idPrefix)
	if err != nil {
		return err
	}
	if err := s.Update(t.ID, task.Patch{Status: &status}); err != nil {
		return err
	}
	fmt.Printf(format, shortID(t.ID), t.Title)
	return nil
}
