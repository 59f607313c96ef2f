package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/dzyphr/solana-playground/internal/crates"
)

type crateProgressModel struct {
	title   string
	events  <-chan crates.Event
	spinner spinner.Model
	prog    progress.Model
	items   []crateItem
	index   map[string]int
	width   int
	done    bool
}

type crateItem struct {
	name   string
	status string
	phase  crates.Phase
	seen   bool
}

type eventMsg crates.Event
type doneMsg struct{}

// NewCrateProgress returns a Bubble Tea model that renders crate-loading
// progress for the named crates, driven by loader events.
func NewCrateProgress(title string, names []string, events <-chan crates.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]crateItem, 0, len(names))
	index := make(map[string]int, len(names))
	for i, name := range names {
		items = append(items, crateItem{name: name, status: "queued"})
		index[name] = i
	}
	return &crateProgressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *crateProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *crateProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(crates.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *crateProgressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}

	for _, item := range m.items {
		name := truncate(item.name, nameWidth)
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		b.WriteString(fmt.Sprintf("  %s %s", statusStyled, name))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *crateProgressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *crateProgressModel) applyEvent(ev crates.Event) tea.Cmd {
	idx, ok := m.index[ev.Name]
	if !ok {
		// Transitive crate outside the permitted display set.
		return nil
	}
	m.items[idx].status = ev.Phase.String()
	m.items[idx].phase = ev.Phase
	m.items[idx].seen = true

	totalProgress := 0.0
	for _, item := range m.items {
		totalProgress += progressFromPhase(item.phase, item.seen)
	}
	pct := totalProgress / float64(len(m.items))
	return m.prog.SetPercent(pct)
}

func progressFromPhase(phase crates.Phase, seen bool) float64 {
	if !seen {
		return 0.0
	}
	switch phase {
	case crates.PhaseFetching:
		return 0.3
	case crates.PhaseIngesting:
		return 0.7
	case crates.PhaseDone, crates.PhaseFailed:
		return 1.0
	default:
		return 0.0
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "failed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "fetching", "ingesting":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
