package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/output"
)

// TUIRenderer draws a live progress view with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *syncModel
	tracker *Tracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when the output is not
// a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !output.IsTTY(cfg.Output) {
		return nil, rerrors.InputError("progress output is not a terminal", nil)
	}
	tracker := NewTracker()
	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   newSyncModel(tracker, cfg),
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	r.program = tea.NewProgram(r.model, tea.WithOutput(r.cfg.Output), tea.WithContext(ctx))
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements Renderer.
func (r *TUIRenderer) Update(ev ProgressEvent) {
	r.tracker.Update(ev)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(updateMsg(ev))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(sum Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(completeMsg(sum))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()

	if program == nil {
		return nil
	}
	program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		// An unresponsive terminal must not hang the command.
	}
	return nil
}

type updateMsg ProgressEvent
type completeMsg Summary
type tickMsg time.Time

// syncModel is the bubbletea model for a directory sync.
type syncModel struct {
	tracker   *Tracker
	root      string
	interrupt func()
	styles    output.Styles
	spinner   spinner.Model
	bar       progress.Model
	width     int
	complete  bool
	quitting  bool
	summary   Summary
}

func newSyncModel(tracker *Tracker, cfg Config) *syncModel {
	st := styles(cfg.NoColor)
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = st.Header

	bar := progress.New(
		progress.WithSolidFill(output.ColorLime),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &syncModel{
		tracker:   tracker,
		root:      cfg.Root,
		interrupt: cfg.Interrupt,
		styles:    st,
		spinner:   s,
		bar:       bar,
		width:     80,
	}
}

func (m *syncModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.interrupt != nil {
				m.interrupt()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-30, 20)

	case updateMsg:
		// The tracker already holds the event.
		return m, nil

	case completeMsg:
		m.complete = true
		m.summary = Summary(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *syncModel) View() string {
	if m.quitting {
		return "cancelled\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	snap := m.tracker.Snapshot()
	title := "Indexing"
	if m.root != "" {
		title += " " + m.root
	}
	lines := []string{m.spinner.View() + " " + m.styles.Header.Render(title)}

	if snap.Total == 0 {
		lines = append(lines, m.styles.Dim.Render("scanning..."))
		return strings.Join(lines, "\n") + "\n"
	}

	pct := m.styles.Header.Render(fmt.Sprintf("%3.0f%%", snap.Percent()*100))
	lines = append(lines,
		fmt.Sprintf("%s  %s  %d/%d", m.bar.ViewAs(snap.Percent()), pct, snap.Done, snap.Total),
		m.styles.Label.Render(fmt.Sprintf("added %d  updated %d  unchanged %d  failed %d",
			snap.Added, snap.Updated, snap.Skipped, snap.Failed)))
	if snap.Rate > 0 {
		lines = append(lines, m.styles.Label.Render(fmt.Sprintf("%.0f files/s  eta %s", snap.Rate, formatDuration(snap.ETA))))
	}
	if snap.Path != "" {
		lines = append(lines, m.styles.Dim.Render(truncatePath(snap.Path, max(m.width-2, 20))))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *syncModel) renderComplete() string {
	s := m.summary
	var b strings.Builder
	b.WriteString(m.styles.Success.Render("✓ sync complete"))
	b.WriteString(m.styles.Label.Render(fmt.Sprintf("  %d added, %d updated, %d unchanged in %s",
		s.Added, s.Updated, s.Skipped, formatDuration(s.Duration))))
	b.WriteString("\n")
	if s.Failed > 0 {
		b.WriteString(m.styles.Error.Render(fmt.Sprintf("✗ %d failed", s.Failed)))
		b.WriteString("\n")
	}
	return b.String()
}

// formatDuration rounds d for display: "850ms", "42s", "3m 5s", "1h 2m".
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Round(time.Second).Seconds()))
	case d < time.Hour:
		d = d.Round(time.Second)
		if s := int(d.Seconds()) % 60; s != 0 {
			return fmt.Sprintf("%dm %ds", int(d.Minutes()), s)
		}
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncatePath shortens path to maxLen, keeping the file name.
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	i := strings.LastIndex(path, "/")
	name := path[i+1:]
	if len(name)+4 > maxLen {
		return "..." + name[len(name)-maxLen+3:]
	}
	keep := maxLen - len(name) - 4
	if keep <= 0 || i < 0 {
		return ".../" + name
	}
	prefix := path[:i]
	return "..." + prefix[len(prefix)-keep:] + "/" + name
}

var _ Renderer = (*TUIRenderer)(nil)
var _ Renderer = (*PlainRenderer)(nil)
