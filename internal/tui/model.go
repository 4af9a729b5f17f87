package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Status classifies the outcome of one dive.
type Status int

const (
	StatusNew Status = iota
	StatusSkipped
	StatusPartial
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusSkipped:
		return "stored"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is one line of the download log.
type Result struct {
	Index  int
	Label  string
	Status Status
	Detail string
}

// Tally counts results by status.
type Tally [StatusFailed + 1]int

// Add counts one result.
func (t *Tally) Add(s Status) {
	t[s]++
}

// String returns a one-line summary such as "3 new, 12 already stored".
func (t Tally) String() string {
	parts := []string{
		fmt.Sprintf("%d new", t[StatusNew]+t[StatusPartial]),
		fmt.Sprintf("%d already stored", t[StatusSkipped]),
	}
	if n := t[StatusPartial]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d partial", n))
	}
	if n := t[StatusFailed]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", n))
	}
	return strings.Join(parts, ", ")
}

// Stage names understood by the progress line. They match the stages of a
// dive sync.
const (
	stageCount   = "count"
	stageHeader  = "header"
	stageProfile = "profile"
	stageDone    = "done"
)

// maxResultLines is how many recent results stay on screen.
const maxResultLines = 10

// Model is the Bubbletea model of the download screen.
type Model struct {
	title  string
	cancel context.CancelFunc

	// State
	done       int
	total      int
	stage      string
	results    []Result
	counts     Tally
	cancelling bool
	finished   bool
	err        error
	width      int

	// Components
	progress ProgressState
	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	styles   Styles
}

// NewModel creates the download screen. cancel is called when the user asks
// to stop.
func NewModel(title string, cancel context.CancelFunc) Model {
	h := help.New()
	h.ShowAll = false

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return Model{
		title:    title,
		cancel:   cancel,
		progress: NewProgressState(),
		keys:     DefaultKeyMap(),
		help:     h,
		spinner:  s,
		styles:   DefaultStyles(),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.done, m.total, m.stage = msg.done, msg.total, msg.stage
		if !m.progress.IsActive() {
			m.progress.Start("")
		}
		percent := 0.0
		if msg.total > 0 {
			percent = float64(msg.done) / float64(msg.total)
		}
		m.progress.Update(percent, m.describe())
		return m, nil

	case diveResultMsg:
		m.results = append(m.results, msg.result)
		m.counts.Add(msg.result.Status)
		return m, nil

	case jobDoneMsg:
		m.finished = true
		m.err = msg.err
		if msg.err == nil && !m.cancelling {
			m.progress.Complete()
		} else {
			m.progress.Cancel()
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		// A second press gives up on a clean stop.
		if m.finished || m.cancelling {
			return m, tea.Quit
		}
		m.cancelling = true
		if m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

func (m Model) describe() string {
	switch m.stage {
	case stageCount:
		return "Counting dives..."
	case stageHeader:
		return fmt.Sprintf("Dive %d/%d: reading header", m.done+1, m.total)
	case stageProfile:
		return fmt.Sprintf("Dive %d/%d: downloading profile", m.done+1, m.total)
	case stageDone:
		return fmt.Sprintf("Checked %d dives", m.total)
	default:
		return m.stage
	}
}

// Err returns the error the job finished with.
func (m Model) Err() error {
	return m.err
}

// Cancelled reports whether the user stopped the download.
func (m Model) Cancelled() bool {
	return m.cancelling
}

// Summary returns a one-line tally of the results.
func (m Model) Summary() string {
	return m.counts.String()
}

// View renders the download screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render(m.title))
	if !m.finished {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteString("\n\n")

	if pv := m.progress.View(); pv != "" {
		b.WriteString(pv)
		b.WriteString("\n\n")
	}

	start := max(0, len(m.results)-maxResultLines)
	if start > 0 {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  ... %d earlier", start)))
		b.WriteString("\n")
	}
	for _, r := range m.results[start:] {
		b.WriteString(m.renderResult(r))
		b.WriteString("\n")
	}

	switch {
	case m.finished && m.err != nil:
		b.WriteString("\n" + m.styles.Error.Render("Error: "+m.err.Error()) + "\n")
	case m.finished:
		b.WriteString("\n" + m.styles.Success.Render(m.Summary()) + "\n")
	case m.cancelling:
		b.WriteString("\n" + m.styles.Warning.Render("Stopping after the current dive...") + "\n")
	}

	if !m.finished {
		b.WriteString(m.styles.Help.Render(m.help.View(m.keys)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderResult(r Result) string {
	var mark string
	switch r.Status {
	case StatusNew:
		mark = m.styles.Success.Render("✓")
	case StatusSkipped:
		mark = m.styles.Muted.Render("·")
	case StatusPartial:
		mark = m.styles.Warning.Render("!")
	case StatusFailed:
		mark = m.styles.Error.Render("✗")
	}
	line := "  " + mark + " " + r.Label
	if r.Detail != "" {
		line += "  " + m.styles.Muted.Render(r.Detail)
	}
	return line
}
