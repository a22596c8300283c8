// Package tui renders batch run progress as an in-place terminal panel.
// A run fires hundreds of fetch and diff completions; scrolling one log line
// per event buries the interesting ones, so the panel keeps two progress
// bars and a short rolling activity log instead. When stdout is not a
// terminal the panel degrades to plain log lines.
package tui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driven"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

// maxLogLines is how many recent activity lines the panel shows.
const maxLogLines = 8

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Width(9)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	logStyle   = lipgloss.NewStyle().Faint(true)
)

// Messages fed into the model by the sink.
type (
	logMsg       string
	fetchDoneMsg struct{}
	diffDoneMsg  struct{}
	errorMsg     struct{}
	finishMsg    struct{}
)

// model is the bubbletea model behind the progress panel.
type model struct {
	totalFetches int
	totalDiffs   int

	fetches int
	diffs   int
	errors  int

	fetchBar progress.Model
	diffBar  progress.Model
	spin     spinner.Model
	logs     []string
	done     bool
}

func newModel(totalFetches, totalDiffs int) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return model{
		totalFetches: totalFetches,
		totalDiffs:   totalDiffs,
		fetchBar:     progress.New(progress.WithDefaultGradient()),
		diffBar:      progress.New(progress.WithDefaultGradient()),
		spin:         sp,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case logMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
	case fetchDoneMsg:
		m.fetches++
	case diffDoneMsg:
		m.diffs++
	case errorMsg:
		m.errors++
	case finishMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("feeddiff run"))
	if !m.done {
		b.WriteString(" " + m.spin.View())
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %s %d/%d\n",
		labelStyle.Render("Fetches"),
		m.fetchBar.ViewAs(ratio(m.fetches, m.totalFetches)),
		m.fetches, m.totalFetches))
	b.WriteString(fmt.Sprintf("%s %s %d/%d\n",
		labelStyle.Render("Diffs"),
		m.diffBar.ViewAs(ratio(m.diffs, m.totalDiffs)),
		m.diffs, m.totalDiffs))

	if m.errors > 0 {
		b.WriteString(errStyle.Render(fmt.Sprintf("Errors: %d", m.errors)) + "\n")
	}

	if len(m.logs) > 0 {
		b.WriteString("\n")
		for _, line := range m.logs {
			b.WriteString(logStyle.Render(line) + "\n")
		}
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func ratio(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	if done > total {
		return 1
	}
	return float64(done) / float64(total)
}

// PanelSink feeds progress events into a running bubbletea program.
type PanelSink struct {
	prog *tea.Program
	wg   sync.WaitGroup
}

// Ensure PanelSink implements the port.
var _ driven.ProgressSink = (*PanelSink)(nil)

// NewSink returns the best progress sink for the current environment: an
// interactive panel on a terminal, plain log lines otherwise.
func NewSink(totalFetches, totalDiffs int) driven.ProgressSink {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return logSink{}
	}
	return NewPanelSink(totalFetches, totalDiffs)
}

// NewPanelSink starts the panel program and returns its sink.
// The panel renders on stderr so stdout stays clean for JSON output.
func NewPanelSink(totalFetches, totalDiffs int) *PanelSink {
	s := &PanelSink{
		prog: tea.NewProgram(newModel(totalFetches, totalDiffs), tea.WithOutput(os.Stderr)),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.prog.Run(); err != nil {
			logger.Error("progress panel failed: %v", err)
		}
	}()
	return s
}

// Logf implements driven.ProgressSink.
func (s *PanelSink) Logf(format string, args ...any) {
	s.prog.Send(logMsg(fmt.Sprintf(format, args...)))
}

// FetchCompleted implements driven.ProgressSink.
func (s *PanelSink) FetchCompleted() { s.prog.Send(fetchDoneMsg{}) }

// DiffCompleted implements driven.ProgressSink.
func (s *PanelSink) DiffCompleted() { s.prog.Send(diffDoneMsg{}) }

// ErrorOccurred implements driven.ProgressSink.
func (s *PanelSink) ErrorOccurred() { s.prog.Send(errorMsg{}) }

// Done implements driven.ProgressSink. Blocks until the panel has released
// the terminal.
func (s *PanelSink) Done() {
	s.prog.Send(finishMsg{})
	s.wg.Wait()
}

// NewLogSink returns a sink that degrades progress events to plain log
// lines. Used directly by modes that never show the panel.
func NewLogSink() driven.ProgressSink {
	return logSink{}
}

// logSink degrades progress events to plain log lines for non-interactive
// runs (CI, pipes).
type logSink struct{}

// Ensure logSink implements the port.
var _ driven.ProgressSink = logSink{}

func (logSink) Logf(format string, args ...any) { logger.Info(format, args...) }
func (logSink) FetchCompleted()                 {}
func (logSink) DiffCompleted()                  {}
func (logSink) ErrorOccurred()                  {}
func (logSink) Done()                           {}
