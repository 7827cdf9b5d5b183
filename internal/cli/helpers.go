package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/carahq/cara/internal/assist"
	"github.com/carahq/cara/internal/config"
	"github.com/carahq/cara/internal/llm"
	"github.com/carahq/cara/internal/store"
	"github.com/carahq/cara/internal/task"
)

const caraDirName = ".cara"

// caraPath returns the path to a file inside .cara/.
func caraPath(parts ...string) string {
	elems := append([]string{caraDirName}, parts...)
	return filepath.Join(elems...)
}

// mustConfig loads the workspace config, returning an error if cara is not
// initialized.
func mustConfig() (*config.Config, error) {
	cfgPath := caraPath("cara.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("cara not initialized. Run: cara init")
	}
	return config.Load(cfgPath)
}

// mustStore opens the store for an initialized workspace.
func mustStore(cfg *config.Config) (*store.Store, error) {
	return store.New(cfg.DBPath)
}

// newAssistant builds the assistant over a retrying inference client.
func newAssistant(cfg *config.Config) (*assist.Assistant, error) {
	base, err := llm.NewHTTPClient(cfg.Inference)
	if err != nil {
		return nil, err
	}
	client := llm.NewRetryClient(base,
		cfg.Inference.Retry.MaxAttempts,
		time.Duration(cfg.Inference.Retry.DelayMS)*time.Millisecond)
	return assist.New(client), nil
}

// resolveTask finds the owner's task whose id starts with the given prefix.
// Ambiguous prefixes are rejected so a short id never silently hits the
// wrong task.
func resolveTask(s *store.Store, ownerID, prefix string) (*task.Task, error) {
	tasks, err := s.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	var match *task.Task
	for i := range tasks {
		if strings.HasPrefix(tasks[i].ID, prefix) {
			if match != nil {
				return nil, fmt.Errorf("task id %q is ambiguous", prefix)
			}
			match = &tasks[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no task with id %q", prefix)
	}
	return match, nil
}

// shortID renders an id for listings.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// priorityLabel renders the AI rating, or a dash while unrated.
func priorityLabel(t task.Task) string {
	if !t.HasPriority() {
		return " -"
	}
	return fmt.Sprintf("%2d", t.AIPriority)
}
