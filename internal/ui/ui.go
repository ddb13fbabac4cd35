package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mediafetch/internal/models"
)

// RowState is the display state of one download.
type RowState int

const (
	RowWaiting RowState = iota
	RowRunning
	RowFinished
	RowFailed
)

const (
	minBarWidth = 10
	maxBarWidth = 60
)

// row is one download line.
type row struct {
	label   string
	taskID  string
	state   RowState
	percent float64
	speed   string
	eta     string
	detail  string
}

// Model represents the TUI application state.
type Model struct {
	rows     []*row
	selected int
	bar      progress.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	cancel   func(index int)
	done     bool
	width    int
}

// NewModel creates a model with one waiting row per label.
//
// cancel is called with a row index when the user cancels that download, and with
// every unfinished index on quit. It may be nil.
func NewModel(labels []string, cancel func(index int)) *Model {
	rows := make([]*row, len(labels))
	for i, l := range labels {
		rows[i] = &row{label: l, speed: "...", eta: "..."}
	}
	if cancel == nil {
		cancel = func(int) {}
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.selected

	return &Model{
		rows:    rows,
		bar:     progress.New(progress.WithSolidFill(styles.accent), progress.WithoutPercentage(), progress.WithWidth(40)),
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
		cancel:  cancel,
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width/3, minBarWidth), maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		for i, r := range m.rows {
			if r.state == RowWaiting || r.state == RowRunning {
				m.cancel(i)
			}
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.down):
		if m.selected < len(m.rows)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.cancel):
		if r := m.row(m.selected); r != nil && (r.state == RowWaiting || r.state == RowRunning) {
			m.cancel(m.selected)
		}
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	if msg.kind == MsgAllDone {
		m.done = true
		return m, tea.Quit
	}

	r := m.row(msg.index)
	if r == nil {
		return m, nil
	}

	switch msg.kind {
	case MsgStarted:
		r.taskID, _ = msg.data.(string)
		r.state = RowRunning
	case MsgEvent:
		m.applyEvent(r, msg.data.(models.ProgressEvent))
	case MsgSaved:
		r.state = RowFinished
		r.percent = 100
		r.detail, _ = msg.data.(string)
	case MsgRejected:
		r.state = RowFailed
		if err, ok := msg.data.(error); ok && err != nil {
			r.detail = err.Error()
		}
	}
	return m, nil
}

func (m *Model) applyEvent(r *row, ev models.ProgressEvent) {
	switch e := ev.(type) {
	case models.Progress:
		r.state = RowRunning
		if e.Percent > r.percent {
			r.percent = e.Percent
		}
		r.speed, r.eta = e.Speed, e.ETA
	case models.Finished:
		r.percent = 100
		r.detail = e.DownloadURL
	case models.Failed:
		r.state = RowFailed
		r.detail = e.Message
	}
}

func (m *Model) row(i int) *row {
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return m.rows[i]
}

// Done reports whether every download has ended.
func (m *Model) Done() bool { return m.done }

// State returns the display state of row i.
func (m *Model) State(i int) RowState {
	if r := m.row(i); r != nil {
		return r.state
	}
	return RowWaiting
}

// Summary counts finished and failed rows.
func (m *Model) Summary() (finished, failed int) {
	for _, r := range m.rows {
		switch r.state {
		case RowFinished:
			finished++
		case RowFailed:
			failed++
		}
	}
	return finished, failed
}

// View renders the UI.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Downloading %d item(s)", len(m.rows))))
	b.WriteString("\n")

	for i, r := range m.rows {
		cursor := "  "
		label := r.label
		if i == m.selected {
			cursor = styles.selected.Render("▸ ")
			label = styles.selected.Render(label)
		}

		b.WriteString(cursor + m.icon(r) + " " + label + "\n")
		switch r.state {
		case RowWaiting:
			b.WriteString("    " + styles.help.Render("waiting...") + "\n")
		case RowRunning:
			fmt.Fprintf(&b, "    %s %5.1f%%  %s  eta %s\n", m.bar.ViewAs(r.percent/100), r.percent, r.speed, r.eta)
		case RowFinished:
			b.WriteString("    " + styles.ok.Render("saved to "+r.detail) + "\n")
		case RowFailed:
			b.WriteString("    " + styles.err.Render(r.detail) + "\n")
		}
	}

	if m.done {
		finished, failed := m.Summary()
		summary := fmt.Sprintf("%d saved, %d failed", finished, failed)
		if failed > 0 {
			b.WriteString("\n" + styles.warn.Render(summary) + "\n")
		} else {
			b.WriteString("\n" + styles.ok.Render(summary) + "\n")
		}
		return b.String()
	}

	b.WriteString("\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) icon(r *row) string {
	switch r.state {
	case RowFinished:
		return styles.ok.Render("✓")
	case RowFailed:
		return styles.err.Render("✗")
	default:
		return m.spinner.View()
	}
}
