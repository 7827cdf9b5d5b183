package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/carahq/cara/internal/assist"
	"github.com/carahq/cara/internal/store"
	"github.com/carahq/cara/internal/task"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to Cara",
	Long:  "Interactive chat with Cara. Describe repair work in plain words\nand she will file it as a task when she spots one.",
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	s, err := mustStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	assistant, err := newAssistant(cfg)
	if err != nil {
		return err
	}
	session := assistant.StartChat(nil)

	fmt.Println("Chatting with Cara. Type 'exit' to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		reply, err := session.Send(cmd.Context(), line)
		if err != nil {
			fmt.Printf("Cara is unavailable: %v\n", err)
			continue
		}
		fmt.Printf("Cara: %s\n", reply)

		// A second pass over the same message looks for a task to file.
		// A miss is normal conversation, not an error.
		draft, err := assistant.ExtractTask(cmd.Context(), line)
		if err != nil || draft == nil {
			continue
		}
		created, err := fileDraft(cfg.Owner, *draft, s)
		if err != nil {
			fmt.Printf("Could not file the task: %v\n", err)
			continue
		}
		fmt.Printf("Filed task %s: %s (priority %d/10)\n",
			shortID(created.ID), created.Title, created.AIPriority)
	}
	return scanner.Err()
}

func fileDraft(ownerID string, draft assist.Draft, s *store.Store) (*task.Task, error) {
	t, err := assist.SanitizeDraft(draft, ownerID)
	if err != nil {
		return nil, err
	}
	return s.Create(t)
}
