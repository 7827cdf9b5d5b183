// Package tui is the interactive task board. It renders the collection the
// sync engine publishes and pushes edits back through the debounced writer.
package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/carahq/cara/internal/editor"
	"github.com/carahq/cara/internal/store"
	tasksync "github.com/carahq/cara/internal/sync"
	"github.com/carahq/cara/internal/task"
)

// screen represents which view the TUI is in.
type screen int

const (
	screenList   screen = iota // filtered task list (main)
	screenDetail               // one task, with inline editing
	screenCreate               // new task form
)

// editField is the detail-screen field currently being edited.
type editField int

const (
	editNone editField = iota
	editTitle
	editDesc
)

var statusCycle = []task.Status{task.StatusAll, task.StatusPending, task.StatusInProgress, task.StatusCompleted}

var sortCycle = []task.SortKey{task.SortByPriority, task.SortByDate, task.SortByStatus}

// Model is the top-level bubbletea model.
type Model struct {
	store  *store.Store
	rec    *tasksync.Reconciler // owns the live subscription feeding snapshots
	writer *editor.DebouncedWriter
	owner  string

	width  int
	height int

	currentScreen screen

	// Engine events, bridged into bubbletea messages.
	snapshots chan []task.Task
	saves     chan saveEvent
	syncErrs  chan error

	// Collection as last published by the engine.
	tasks  []task.Task
	cursor int

	// View state.
	statusIdx   int
	sortIdx     int
	searchInput textinput.Model
	searching   bool
	spin        spinner.Model // shown while a task awaits estimation

	// Detail/edit state.
	selectedID string
	editing    editField
	editInput  textinput.Model
	saveState  map[string]saveEvent // field name → last save event for selected task

	// Create form.
	titleInput   textinput.Model
	descInput    textinput.Model
	inputFocused int // 0=title, 1=desc

	statusMsg string
	quitting  bool
}

type saveEvent struct {
	taskID string
	field  string
	status editor.SaveStatus
	err    error
}

// Options wires the model to the engine pieces the CLI constructed.
type Options struct {
	Store      *store.Store
	Reconciler *tasksync.Reconciler
	Writer     *editor.DebouncedWriter
	Owner      string

	// Channels the reconciler and writer publish into.
	Snapshots chan []task.Task
	Saves     chan saveEvent
	SyncErrs  chan error
}

// New creates the board model.
func New(opts Options) Model {
	si := textinput.New()
	si.Placeholder = "search..."
	si.CharLimit = 80
	si.Width = 30

	ti := textinput.New()
	ti.Placeholder = "Task title..."
	ti.CharLimit = 120
	ti.Width = 50

	di := textinput.New()
	di.Placeholder = "Description (optional)..."
	di.CharLimit = 500
	di.Width = 50

	ei := textinput.New()
	ei.CharLimit = 500
	ei.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		store:       opts.Store,
		rec:         opts.Reconciler,
		writer:      opts.Writer,
		owner:       opts.Owner,
		snapshots:   opts.Snapshots,
		saves:       opts.Saves,
		syncErrs:    opts.SyncErrs,
		searchInput: si,
		titleInput:  ti,
		descInput:   di,
		editInput:   ei,
		spin:        sp,
		saveState:   make(map[string]saveEvent),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitSnapshot(), m.waitSave(), m.waitSyncErr(), m.spin.Tick)
}

type snapshotMsg []task.Task

type saveMsg saveEvent

type syncErrMsg struct{ err error }

func (m Model) waitSnapshot() tea.Cmd {
	return func() tea.Msg { return snapshotMsg(<-m.snapshots) }
}

func (m Model) waitSave() tea.Cmd {
	return func() tea.Msg { return saveMsg(<-m.saves) }
}

func (m Model) waitSyncErr() tea.Cmd {
	return func() tea.Msg { return syncErrMsg{err: <-m.syncErrs} }
}

// visible applies the current filter and sort to the published collection.
func (m Model) visible() []task.Task {
	filter := task.FilterSpec{
		Status: statusCycle[m.statusIdx],
		Search: m.searchInput.Value(),
	}
	return task.Apply(m.tasks, filter, sortCycle[m.sortIdx])
}

func (m *Model) clampCursor(visible []task.Task) {
	if m.cursor >= len(visible) {
		m.cursor = len(visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// selected resolves the detail task against the latest collection, so the
// detail screen always shows live data.
func (m Model) selected() *task.Task {
	for i := range m.tasks {
		if m.tasks[i].ID == m.selectedID {
			return &m.tasks[i]
		}
	}
	return nil
}
