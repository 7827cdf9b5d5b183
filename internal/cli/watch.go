package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	tasksync "github.com/carahq/cara/internal/sync"
	"github.com/carahq/cara/internal/task"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the task collection as it changes",
	Long:  "Runs the sync engine headless, printing each published collection.\nUnrated tasks are estimated and written back while it runs.",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	s, err := mustStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	var estimator tasksync.Estimator
	if assistant, err := newAssistant(cfg); err == nil {
		estimator = assistant
	} else {
		fmt.Printf("Priority estimation disabled: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := tasksync.New(tasksync.Options{
		Source:      s,
		Estimator:   estimator,
		MaxBackfill: cfg.Engine.MaxBackfill,
		OnChange: func(tasks []task.Task) {
			fmt.Printf("-- %d tasks --\n", len(tasks))
			for _, t := range tasks {
				fmt.Printf("%s  %-12s P%s  %s\n", shortID(t.ID), t.Status, priorityLabel(t), t.Title)
			}
		},
		OnError: func(err error) {
			fmt.Printf("sync error: %v\n", err)
		},
	})
	if err := rec.Start(cfg.Owner); err != nil {
		return err
	}
	defer rec.Stop()

	fmt.Println("Watching. Ctrl-C to stop.")
	<-ctx.Done()
	return nil
}
