// Package app renders batch progress as a terminal UI.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brensch/s2composite/internal/orchestrator"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	progressBarStyle = lipgloss.NewStyle().Padding(0, 1)
	headerStyle      = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	stageStyle       = map[orchestrator.Stage]lipgloss.Style{
		orchestrator.StageQueued:     lipgloss.NewStyle().Foreground(lipgloss.Color("248")),
		orchestrator.StageExtracting: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		orchestrator.StageLocating:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		orchestrator.StageWriting:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		orchestrator.StageDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		orchestrator.StageSkipped:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		orchestrator.StageFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// ArchiveProgress is one row of the per-archive list.
type ArchiveProgress struct {
	Name    string
	Stage   orchestrator.Stage
	ErrMsg  string
	Start   time.Time
	Elapsed time.Duration
}

// AppModel is the bubbletea model for one batch run.
type AppModel struct {
	Title string
	State AppState

	spinner         spinner.Model
	overallProgress progress.Model

	archives map[string]*ArchiveProgress
	order    []string
	Total    int
	Done     int
	Failed   int
	Skipped  int

	Summary  orchestrator.Summary
	FatalErr error
	Quitting bool

	termWidth  int
	termHeight int

	uiMsgChan <-chan tea.Msg
}

// NewAppModel builds a model fed from msgs. total may be 0 when the number
// of archives is not known up front; it grows as archives are queued.
func NewAppModel(title string, total int, msgs <-chan tea.Msg) *AppModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &AppModel{
		Title:           title,
		State:           Running,
		spinner:         s,
		overallProgress: progress.New(progress.WithDefaultGradient()),
		archives:        make(map[string]*ArchiveProgress),
		Total:           total,
		termWidth:       80,
		termHeight:      24,
		uiMsgChan:       msgs,
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForActivityCmd())
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.Quitting = true
			m.State = Exiting
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.termHeight = msg.Height
		m.overallProgress.Width = max(0, m.termWidth-4)
	case ArchiveMsg:
		m.apply(orchestrator.ArchiveEvent(msg))
		cmds = append(cmds, m.overallProgress.SetPercent(m.Percent()), m.waitForActivityCmd())
	case BatchFinishedMsg:
		m.Summary = msg.Summary
		m.FatalErr = msg.Err
		m.State = Finished
		if msg.Err != nil {
			m.State = ShowError
		}
		return m, tea.Quit
	case spinner.TickMsg:
		if m.State == Running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	case progress.FrameMsg:
		progModel, frameCmd := m.overallProgress.Update(msg)
		if pm, ok := progModel.(progress.Model); ok {
			m.overallProgress = pm
			cmds = append(cmds, frameCmd)
		}
	}
	return m, tea.Batch(cmds...)
}

// apply folds one event into the per-archive rows and the counters.
func (m *AppModel) apply(e orchestrator.ArchiveEvent) {
	row, ok := m.archives[e.Archive]
	if !ok {
		row = &ArchiveProgress{Name: e.Archive, Stage: orchestrator.StageQueued, Start: time.Now()}
		m.archives[e.Archive] = row
		m.order = append(m.order, e.Archive)
		if len(m.order) > m.Total {
			m.Total = len(m.order)
		}
	}
	if row.Stage.Terminal() {
		return
	}
	row.Stage = e.Stage
	if e.Elapsed > 0 {
		row.Elapsed = e.Elapsed
	}
	if e.Err != nil {
		row.ErrMsg = e.Err.Error()
	}
	switch e.Stage {
	case orchestrator.StageDone:
		m.Done++
	case orchestrator.StageFailed:
		m.Failed++
	case orchestrator.StageSkipped:
		m.Skipped++
	}
}

// Percent is the share of archives that reached a terminal stage.
func (m *AppModel) Percent() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Done+m.Failed+m.Skipped) / float64(m.Total)
}

func (m *AppModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.Title))
	b.WriteString("\n\n")

	switch m.State {
	case Running:
		fmt.Fprintf(&b, "%s Compositing archives\n", m.spinner.View())
	case Finished:
		fmt.Fprintf(&b, "Finished in %s\n", m.Summary.Duration.Round(time.Millisecond))
	case ShowError:
		b.WriteString(errorStyle.Render("Batch failed: " + wrapText(fmt.Sprint(m.FatalErr), m.termWidth-4)))
		b.WriteString("\n")
	case Exiting:
		b.WriteString(infoStyle.Render("Exiting, waiting for running archives..."))
		b.WriteString("\n")
	}
	b.WriteString(progressBarStyle.Render(m.overallProgress.ViewAs(m.Percent())))
	fmt.Fprintf(&b, " (%d/%d)  done %d  failed %d  skipped %d\n\n",
		m.Done+m.Failed+m.Skipped, m.Total, m.Done, m.Failed, m.Skipped)
	b.WriteString(m.viewArchives())

	if m.State == Running {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render("'q' or Ctrl+C to stop admitting archives."))
	}
	return b.String()
}

func (m *AppModel) viewArchives() string {
	if len(m.order) == 0 {
		return ""
	}
	var b strings.Builder
	maxLines := max(1, m.termHeight-10)
	startIdx := max(0, len(m.order)-maxLines)

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-40s | %-10s | %s", "Archive", "Stage", "Elapsed")))
	b.WriteString("\n")
	for _, name := range m.order[startIdx:] {
		row := m.archives[name]
		style, ok := stageStyle[row.Stage]
		if !ok {
			style = infoStyle
		}
		elapsed := ""
		switch {
		case row.Elapsed > 0:
			elapsed = row.Elapsed.Round(time.Millisecond).String()
		case !row.Stage.Terminal() && row.Stage != orchestrator.StageQueued:
			elapsed = time.Since(row.Start).Round(time.Second).String() + "..."
		}
		displayName := row.Name
		if utf8.RuneCountInString(displayName) > 40 {
			displayName = truncate(displayName, 37) + "..."
		}
		fmt.Fprintf(&b, "%-40s | %s | %s\n", displayName, style.Render(fmt.Sprintf("%-10s", row.Stage)), elapsed)
		if row.ErrMsg != "" {
			b.WriteString(errorStyle.Render(truncate("  -> "+row.ErrMsg, m.termWidth-1)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *AppModel) waitForActivityCmd() tea.Cmd {
	if m.uiMsgChan == nil {
		return nil
	}
	ch := m.uiMsgChan
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// BatchFunc runs a batch, publishing progress through onProgress.
type BatchFunc func(ctx context.Context, onProgress orchestrator.ProgressFunc) (orchestrator.Summary, error)

// RunBatch drives run under a progress UI. Quitting the UI cancels ctx, which
// stops admission; RunBatch still waits for the batch to return.
func RunBatch(ctx context.Context, title string, total int, run BatchFunc, opts ...tea.ProgramOption) (orchestrator.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan tea.Msg, 64)
	var summary orchestrator.Summary
	var runErr error
	go func() {
		defer close(msgs)
		summary, runErr = run(ctx, func(e orchestrator.ArchiveEvent) { msgs <- ArchiveMsg(e) })
		msgs <- BatchFinishedMsg{Summary: summary, Err: runErr}
	}()

	_, uiErr := tea.NewProgram(NewAppModel(title, total, msgs), opts...).Run()
	cancel()
	// Keep workers unblocked until the batch returns.
	for range msgs {
	}
	if uiErr != nil && runErr == nil {
		return summary, fmt.Errorf("progress UI: %w", uiErr)
	}
	return summary, runErr
}

// truncate cuts s to at most width runes.
func truncate(s string, width int) string {
	r := []rune(s)
	if width > 0 && len(r) > width {
		return string(r[:width])
	}
	return s
}

func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}
	var result strings.Builder
	var currentLine strings.Builder
	for _, word := range strings.Fields(text) {
		if currentLine.Len() > 0 && currentLine.Len()+len(word)+1 > maxWidth {
			result.WriteString(currentLine.String())
			result.WriteString("\n")
			currentLine.Reset()
		}
		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}
	result.WriteString(currentLine.String())
	return result.String()
}
