package cli

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/carahq/cara/internal/editor"
	tasksync "github.com/carahq/cara/internal/sync"
	"github.com/carahq/cara/internal/tui"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the interactive task board",
	Long:  "Opens the live task board. Edits sync in the background and Cara\nrates unprioritized tasks as they appear.",
	RunE:  runBoard,
}

func runBoard(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	s, err := mustStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	snapshots, saves, syncErrs := tui.NewChannels()

	// The board still works without inference; tasks just stay unrated.
	var estimator tasksync.Estimator
	if assistant, err := newAssistant(cfg); err == nil {
		estimator = assistant
	} else {
		fmt.Printf("Priority estimation disabled: %v\n", err)
	}

	rec := tasksync.New(tasksync.Options{
		Source:      s,
		Estimator:   estimator,
		MaxBackfill: cfg.Engine.MaxBackfill,
		OnChange:    tui.Snapshot(snapshots),
		OnError:     tui.SyncErr(syncErrs),
	})
	if err := rec.Start(cfg.Owner); err != nil {
		return err
	}
	defer rec.Stop()

	writer := editor.New(editor.Options{
		Writer:   s,
		Quiet:    time.Duration(cfg.Engine.DebounceMS) * time.Millisecond,
		OnStatus: tui.SaveEvent(saves),
	})
	defer writer.Flush()

	model := tui.New(tui.Options{
		Store:      s,
		Reconciler: rec,
		Writer:     writer,
		Owner:      cfg.Owner,
		Snapshots:  snapshots,
		Saves:      saves,
		SyncErrs:   syncErrs,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("board error: %w", err)
	}
	return nil
}
