// ABOUTME: Terminal progress view for long-running imports using bubbletea
// ABOUTME: Shows a spinner while the import runs and a one-line result afterwards
package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCanceled is reported when the user interrupts a running import.
var ErrCanceled = errors.New("import canceled")

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// ImportFunc performs an import and returns a one-line summary.
type ImportFunc func() (string, error)

// ImportDoneMsg is sent when the import function returns.
type ImportDoneMsg struct {
	Summary string
	Err     error
}

// ImportModel is the bubbletea model for an import in progress.
type ImportModel struct {
	title   string
	run     ImportFunc
	spinner spinner.Model
	loading bool
	summary string
	err     error
}

// NewImportModel creates a progress view for run.
func NewImportModel(title string, run ImportFunc) ImportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return ImportModel{title: title, run: run, spinner: s, loading: true}
}

func (m ImportModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// start runs the import off the UI loop. A panic is reported as an error so
// the view never stays in the loading state.
func (m ImportModel) start() tea.Cmd {
	run := m.run
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = ImportDoneMsg{Err: fmt.Errorf("import panicked: %v", r)}
			}
		}()
		summary, err := run()
		return ImportDoneMsg{Summary: summary, Err: err}
	}
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			m.loading = false
			m.err = ErrCanceled
			return m, tea.Quit
		}
		return m, nil

	case ImportDoneMsg:
		m.loading = false
		m.summary = msg.Summary
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ImportModel) View() string {
	var s strings.Builder
	switch {
	case m.loading:
		s.WriteString(m.spinner.View())
		s.WriteString(" ")
		s.WriteString(titleStyle.Render(m.title))
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("Esc to cancel"))
	case m.err != nil:
		s.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	default:
		s.WriteString(successStyle.Render("✓ " + m.summary))
	}
	s.WriteString("\n")
	return s.String()
}

// Loading reports whether the import is still running.
func (m ImportModel) Loading() bool { return m.loading }

// Summary returns the import summary once finished.
func (m ImportModel) Summary() string { return m.summary }

// Err returns the import error once finished.
func (m ImportModel) Err() error { return m.err }

// RunImport shows the progress view on out until run finishes.
func RunImport(title string, run ImportFunc, in io.Reader, out io.Writer) (string, error) {
	final, err := tea.NewProgram(NewImportModel(title, run), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return "", fmt.Errorf("progress view failed: %w", err)
	}
	m := final.(ImportModel)
	return m.Summary(), m.Err()
}
