package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [id]",
	Short: "Show a task's event history",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
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
	events, err := s.Events(t.ID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events.")
		return nil
	}

	fmt.Printf("Events for %s: %s\n", shortID(t.ID), t.Title)
	for _, e := range events {
		fmt.Printf("  %s  %-14s %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Type, e.Content)
	}
	return nil
}
