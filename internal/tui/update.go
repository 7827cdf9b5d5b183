package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/carahq/cara/internal/editor"
	"github.com/carahq/cara/internal/task"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.tasks = msg
		m.clampCursor(m.visible())
		return m, m.waitSnapshot()

	case saveMsg:
		if msg.taskID == m.selectedID {
			m.saveState[msg.field] = saveEvent(msg)
		}
		return m, m.waitSave()

	case syncErrMsg:
		m.statusMsg = "Sync error: " + msg.err.Error()
		return m, m.waitSyncErr()

	case actionDoneMsg:
		m.statusMsg = msg.status
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentScreen {
	case screenDetail:
		return m.handleDetailKey(msg)
	case screenCreate:
		return m.handleCreateKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Search input swallows keys while active.
	if m.searching {
		switch msg.String() {
		case "enter", "esc":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.searchInput, cmd = m.searchInput.Update(msg)
			m.clampCursor(m.visible())
			return m, cmd
		}
	}

	visible := m.visible()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "j", "down":
		m.cursor++
		m.clampCursor(visible)

	case "k", "up":
		m.cursor--
		m.clampCursor(visible)

	case "/":
		m.searching = true
		m.searchInput.Focus()
		return m, nil

	case "f":
		m.statusIdx = (m.statusIdx + 1) % len(statusCycle)
		m.clampCursor(m.visible())

	case "o":
		m.sortIdx = (m.sortIdx + 1) % len(sortCycle)

	case "c":
		m.currentScreen = screenCreate
		m.inputFocused = 0
		m.titleInput.SetValue("")
		m.descInput.SetValue("")
		m.titleInput.Focus()
		m.descInput.Blur()
		return m, nil

	case "enter":
		if m.cursor < len(visible) {
			m.selectedID = visible[m.cursor].ID
			m.saveState = make(map[string]saveEvent)
			m.editing = editNone
			m.currentScreen = screenDetail
		}
		return m, nil

	case "s":
		if m.cursor < len(visible) {
			return m, m.setStatus(visible[m.cursor], task.StatusInProgress)
		}

	case "d":
		if m.cursor < len(visible) {
			return m, m.setStatus(visible[m.cursor], task.StatusCompleted)
		}

	case "K":
		// Move the task up one manual slot.
		if m.cursor > 0 && m.cursor < len(visible) {
			return m, m.moveTask(visible[m.cursor].ID, visible[m.cursor-1].Order)
		}

	case "J":
		if m.cursor+1 < len(visible) {
			return m, m.moveTask(visible[m.cursor].ID, visible[m.cursor+1].Order+1)
		}

	case "x":
		if m.cursor < len(visible) {
			return m, m.deleteTask(visible[m.cursor].ID)
		}
	}

	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// An active edit routes keys into the input and debounces every change
	// out to the store.
	if m.editing != editNone {
		switch msg.String() {
		case "enter", "esc":
			m.editing = editNone
			m.editInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.editInput, cmd = m.editInput.Update(msg)
			m.debounceEdit()
			return m, cmd
		}
	}

	t := m.selected()

	switch msg.String() {
	case "q", "esc":
		m.currentScreen = screenList
		return m, nil

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "e":
		if t != nil {
			m.editing = editTitle
			m.editInput.SetValue(t.Title)
			m.editInput.Focus()
		}
		return m, nil

	case "E":
		if t != nil {
			m.editing = editDesc
			m.editInput.SetValue(t.Description)
			m.editInput.Focus()
		}
		return m, nil

	case "r":
		// Retry whichever field last failed.
		if t != nil {
			for field, ev := range m.saveState {
				if ev.status == editor.StatusError {
					m.writer.Retry(t.ID, field)
				}
			}
		}
		return m, nil

	case "s":
		if t != nil {
			return m, m.setStatus(*t, task.StatusInProgress)
		}

	case "d":
		if t != nil {
			return m, m.setStatus(*t, task.StatusCompleted)
		}
	}

	return m, nil
}

// debounceEdit pushes the current edit-input value through the debounced
// writer. The local collection is patched immediately so typing never waits
// on the store.
func (m *Model) debounceEdit() {
	t := m.selected()
	if t == nil {
		return
	}

	value := m.editInput.Value()
	var field string
	var patch task.Patch
	switch m.editing {
	case editTitle:
		field, patch = "title", task.Patch{Title: &value}
		t.Title = value
	case editDesc:
		field, patch = "description", task.Patch{Description: &value}
		t.Description = value
	default:
		return
	}
	m.writer.Write(t.ID, field, patch)
}

func (m Model) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.currentScreen = screenList
		return m, nil

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		m.inputFocused = 1 - m.inputFocused
		if m.inputFocused == 0 {
			m.titleInput.Focus()
			m.descInput.Blur()
		} else {
			m.titleInput.Blur()
			m.descInput.Focus()
		}
		return m, nil

	case "enter":
		title := m.titleInput.Value()
		desc := m.descInput.Value()
		m.currentScreen = screenList
		return m, m.createTask(title, desc)
	}

	var cmd tea.Cmd
	if m.inputFocused == 0 {
		m.titleInput, cmd = m.titleInput.Update(msg)
	} else {
		m.descInput, cmd = m.descInput.Update(msg)
	}
	return m, cmd
}

type actionDoneMsg struct{ status string }

func (m Model) setStatus(t task.Task, status task.Status) tea.Cmd {
	return func() tea.Msg {
		if err := m.store.Update(t.ID, task.Patch{Status: &status}); err != nil {
			return actionDoneMsg{status: "Error: " + err.Error()}
		}
		return actionDoneMsg{status: fmt.Sprintf("%s is now %s", t.Title, status)}
	}
}

func (m Model) moveTask(id string, targetOrder int64) tea.Cmd {
	return func() tea.Msg {
		if err := m.store.Reorder(m.owner, id, targetOrder); err != nil {
			return actionDoneMsg{status: "Error: " + err.Error()}
		}
		return actionDoneMsg{status: "Reordered"}
	}
}

func (m Model) deleteTask(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.store.Delete(id); err != nil {
			return actionDoneMsg{status: "Error: " + err.Error()}
		}
		return actionDoneMsg{status: "Deleted"}
	}
}

func (m Model) createTask(title, desc string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.store.Create(task.Task{
			Title:       title,
			Description: desc,
			AssignedTo:  m.owner,
		})
		if err != nil {
			return actionDoneMsg{status: "Error: " + err.Error()}
		}
		return actionDoneMsg{status: "Created " + title}
	}
}
