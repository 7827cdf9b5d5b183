package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/carahq/cara/internal/editor"
	tasksync "github.com/carahq/cara/internal/sync"
	"github.com/carahq/cara/internal/task"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle    = lipgloss.NewStyle().Foreground(clrDim)
	subtleStyle = lipgloss.NewStyle().Foreground(clrSubtle)

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)

	prioHighStyle = lipgloss.NewStyle().Bold(true).Foreground(clrRed)
	prioMidStyle  = lipgloss.NewStyle().Foreground(clrYellow)
	prioLowStyle  = lipgloss.NewStyle().Foreground(clrDim)

	statusDoneStyle   = lipgloss.NewStyle().Foreground(clrGreen)
	statusActiveStyle = lipgloss.NewStyle().Foreground(clrBlue)

	savingStyle = lipgloss.NewStyle().Foreground(clrYellow)
	savedStyle  = lipgloss.NewStyle().Foreground(clrGreen)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	detailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1).
			Width(64)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.currentScreen {
	case screenDetail:
		return m.viewDetail()
	case screenCreate:
		return m.viewCreate()
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	visible := m.visible()

	header := titleStyle.Render("cara board")
	header += dimStyle.Render(fmt.Sprintf(" — %d of %d tasks", len(visible), len(m.tasks)))
	if m.rec.State() == tasksync.StateError {
		header += errorStyle.Render("  sync down")
	}
	b.WriteString(header + "\n")

	filterLine := subtleStyle.Render(fmt.Sprintf("status:%s  sort:%s",
		statusCycle[m.statusIdx], sortCycle[m.sortIdx]))
	if m.searching || m.searchInput.Value() != "" {
		filterLine += "  " + m.searchInput.View()
	}
	b.WriteString(filterLine + "\n\n")

	if len(visible) == 0 {
		b.WriteString(dimStyle.Render("No tasks. Press c to create one.") + "\n")
	}

	for i, t := range visible {
		cursor := "  "
		line := fmt.Sprintf("%s %s %s", m.renderPriority(t), renderStatus(t.Status), t.Title)
		if t.InsuranceClaim != "" {
			line += dimStyle.Render(" [" + t.InsuranceClaim + "]")
		}
		if t.Recurrence != nil {
			line += dimStyle.Render(" ↻")
		}
		if deadlineSoon(t) {
			line += errorStyle.Render(" !")
		}
		if i == m.cursor {
			cursor = selectedStyle.Render("> ")
			line = selectedStyle.Render(line)
		}
		b.WriteString(cursor + line + "\n")
	}

	b.WriteString("\n" + m.footer(
		"enter", "open", "c", "new", "s/d", "start/done",
		"J/K", "move", "/", "search", "f", "filter", "o", "sort", "q", "quit"))

	if m.statusMsg != "" {
		b.WriteString("\n" + savedStyle.Render(m.statusMsg))
	}
	return b.String()
}

func (m Model) viewDetail() string {
	t := m.selected()
	if t == nil {
		return dimStyle.Render("Task no longer exists. Press esc.")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(t.Title) + "\n\n")

	var d strings.Builder
	d.WriteString(fmt.Sprintf("Status:     %s\n", renderStatus(t.Status)+" "+string(t.Status)))
	if t.HasPriority() {
		d.WriteString(fmt.Sprintf("Priority:   %d/10\n", t.AIPriority))
	} else {
		d.WriteString("Priority:   " + m.spin.View() + dimStyle.Render(" estimating") + "\n")
	}
	if t.AISuggestion != "" {
		d.WriteString(fmt.Sprintf("Next step:  %s\n", t.AISuggestion))
	}
	if t.Description != "" {
		d.WriteString(fmt.Sprintf("Desc:       %s\n", t.Description))
	}
	if t.Dealership != "" {
		d.WriteString(fmt.Sprintf("Dealership: %s\n", t.Dealership))
	}
	if t.InsuranceClaim != "" {
		d.WriteString(fmt.Sprintf("Claim:      %s\n", t.InsuranceClaim))
	}
	if t.Deadline != nil {
		line := fmt.Sprintf("Deadline:   %s", t.Deadline.Format(time.DateOnly))
		if deadlineSoon(*t) {
			line += errorStyle.Render("  due soon")
		}
		d.WriteString(line + "\n")
	}
	if t.Recurrence != nil && t.Recurrence.NextDue != nil {
		d.WriteString(fmt.Sprintf("Repeats:    every %d %s, next %s\n",
			t.Recurrence.Interval, t.Recurrence.Frequency,
			t.Recurrence.NextDue.Format(time.DateOnly)))
	}
	b.WriteString(detailBoxStyle.Render(strings.TrimRight(d.String(), "\n")) + "\n")

	if m.editing != editNone {
		label := "Title"
		if m.editing == editDesc {
			label = "Description"
		}
		b.WriteString("\n" + subtleStyle.Render("Editing "+label+":") + "\n")
		b.WriteString(m.editInput.View() + "\n")
	}

	if line := m.renderSaveState(); line != "" {
		b.WriteString("\n" + line + "\n")
	}

	b.WriteString("\n" + m.footer(
		"e", "edit title", "E", "edit desc", "s/d", "start/done", "r", "retry save", "esc", "back"))
	return b.String()
}

// renderSaveState shows the per-field save indicator fed by the debounced
// writer.
func (m Model) renderSaveState() string {
	var parts []string
	for _, field := range []string{"title", "description"} {
		ev, ok := m.saveState[field]
		if !ok {
			continue
		}
		switch ev.status {
		case editor.StatusSaving:
			parts = append(parts, savingStyle.Render(field+": saving..."))
		case editor.StatusSaved:
			parts = append(parts, savedStyle.Render(field+": saved"))
		case editor.StatusError:
			parts = append(parts, errorStyle.Render(field+": save failed (r to retry)"))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) viewCreate() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("New task") + "\n\n")
	b.WriteString("Title:\n" + m.titleInput.View() + "\n\n")
	b.WriteString("Description:\n" + m.descInput.View() + "\n\n")
	b.WriteString(m.footer("tab", "switch field", "enter", "create", "esc", "cancel"))
	return b.String()
}

func (m Model) footer(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, footerKeyStyle.Render(pairs[i])+footerDescStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderPriority(t task.Task) string {
	if !t.HasPriority() {
		return " " + m.spin.View()
	}
	label := fmt.Sprintf("%2d", t.AIPriority)
	switch {
	case t.AIPriority >= 8:
		return prioHighStyle.Render(label)
	case t.AIPriority >= 4:
		return prioMidStyle.Render(label)
	default:
		return prioLowStyle.Render(label)
	}
}

func renderStatus(s task.Status) string {
	switch s {
	case task.StatusCompleted:
		return statusDoneStyle.Render("✓")
	case task.StatusInProgress:
		return statusActiveStyle.Render("●")
	default:
		return dimStyle.Render("○")
	}
}

// deadlineSoon flags unfinished tasks due within two days.
func deadlineSoon(t task.Task) bool {
	if t.Deadline == nil || t.Status == task.StatusCompleted {
		return false
	}
	return t.Deadline.Before(time.Now().Add(48 * time.Hour))
}
