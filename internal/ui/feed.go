package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxFeedLines bounds how many recent batches the feed keeps on screen.
const maxFeedLines = 10

// FeedRenderer provides a live event feed using bubbletea.
type FeedRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *feedModel
	tracker *FeedTracker
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewFeedRenderer creates a feed renderer.
// Returns an error if the output is not a TTY.
func NewFeedRenderer(cfg Config) (*FeedRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewFeedTracker()
	model := newFeedModel(tracker, cfg.Root, cfg.Pattern)

	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &FeedRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *FeedRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	// Alternate screen buffer so the feed never scrolls the shell history
	opts = append(opts, tea.WithAltScreen())

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// ShowBatch implements Renderer.
func (r *FeedRenderer) ShowBatch(event BatchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddBatch(event)

	if r.program != nil {
		r.program.Send(batchMsg(event))
	}
}

// AddError implements Renderer.
func (r *FeedRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)

	if r.program != nil {
		r.program.Send(feedErrorMsg(event))
	}
}

// Complete implements Renderer.
func (r *FeedRenderer) Complete(stats SessionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Send(sessionDoneMsg(stats))
	}
}

// Stop implements Renderer.
func (r *FeedRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	if r.program != nil {
		r.program.Quit()

		// Wait with timeout to avoid hanging on an unresponsive terminal
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}

	return nil
}

// Message types for bubbletea
type batchMsg BatchEvent
type feedErrorMsg ErrorEvent
type sessionDoneMsg SessionStats
type feedTickMsg time.Time

// feedModel is the bubbletea model for the live event feed.
type feedModel struct {
	tracker  *FeedTracker
	recent   []BatchEvent
	width    int
	height   int
	quitting bool
	complete bool
	stats    SessionStats
	spinner  spinner.Model
	styles   Styles
	root     string
	pattern  string
}

// newFeedModel creates a new feed model.
func newFeedModel(tracker *FeedTracker, root, pattern string) *feedModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &feedModel{
		tracker: tracker,
		spinner: s,
		styles:  DefaultStyles(),
		width:   80,
		height:  24,
		root:    root,
		pattern: pattern,
	}
}

// Init implements tea.Model.
func (m *feedModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		feedTickCmd(),
	)
}

// feedTickCmd returns a command that ticks every 100ms.
func feedTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return feedTickMsg(t)
	})
}

// Update implements tea.Model.
func (m *feedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case batchMsg:
		m.recent = append(m.recent, BatchEvent(msg))
		if len(m.recent) > maxFeedLines {
			m.recent = m.recent[len(m.recent)-maxFeedLines:]
		}
		return m, nil

	case feedErrorMsg:
		// Counts live in the tracker, nothing to store here
		return m, nil

	case sessionDoneMsg:
		m.complete = true
		m.stats = SessionStats(msg)
		return m, tea.Quit

	case feedTickMsg:
		return m, feedTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *feedModel) View() string {
	if m.quitting {
		return "Stopped.\n"
	}

	if m.complete {
		return m.renderComplete()
	}

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	sections = append(sections, m.renderFeed(contentWidth))
	sections = append(sections, m.renderDivider(contentWidth))
	sections = append(sections, m.renderThroughput(contentWidth))

	content := strings.Join(sections, "\n")

	title := "vigil"
	if m.root != "" {
		title = fmt.Sprintf("vigil • %s", m.root)
	}
	if m.pattern != "" {
		title += fmt.Sprintf(" • %s", m.pattern)
	}
	panel := m.wrapInPanel(title, content, contentWidth)

	statusBar := m.renderStatusBar()

	return panel + "\n" + statusBar
}

// renderFeed renders the recent batch lines, or a waiting spinner.
func (m *feedModel) renderFeed(width int) string {
	if len(m.recent) == 0 {
		return fmt.Sprintf("%s %s",
			m.spinner.View(),
			m.styles.Dim.Render("Watching for changes..."))
	}

	var lines []string
	for _, ev := range m.recent {
		lines = append(lines, m.renderBatchLine(ev, width))
	}
	return strings.Join(lines, "\n")
}

// renderBatchLine renders one batch as a feed line.
func (m *feedModel) renderBatchLine(ev BatchEvent, width int) string {
	when := ev.Time
	if when.IsZero() {
		when = time.Now()
	}

	stamp := m.styles.Time.Render(when.Format("15:04:05.000"))
	label := m.styles.Category(ev.Category).Render(fmt.Sprintf("%-8s", strings.ToUpper(ev.Category.String())))

	// 23 columns for stamp, label and separators
	pathWidth := width - 23
	if pathWidth < 10 {
		pathWidth = 10
	}
	paths := truncateFilePath(strings.Join(ev.Paths, ", "), pathWidth)

	return fmt.Sprintf("%s  %s %s", stamp, label, paths)
}

// renderThroughput renders the activity sparkline with speed metrics.
func (m *feedModel) renderThroughput(width int) string {
	sparkWidth := width - 10
	if sparkWidth < 10 {
		sparkWidth = 10
	}

	spark := m.tracker.RenderSparkline(sparkWidth)
	label := m.styles.Dim.Render("activity ─")

	speed := m.tracker.SpeedStats()
	speedStr := fmt.Sprintf("Rate: %.0f/s", speed.Current)
	if speed.Avg > 0 {
		speedStr += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", speed.Avg, speed.Peak)
	}

	return m.styles.Sparkline.Render(spark) + " " + label + "\n" + m.styles.Speed.Render(speedStr)
}

// renderDivider renders a horizontal divider line.
func (m *feedModel) renderDivider(width int) string {
	line := strings.Repeat("─", width)
	return m.styles.Border.Render(line)
}

// wrapInPanel wraps content in a box border with title.
func (m *feedModel) wrapInPanel(title, content string, width int) string {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	titleStyled := m.styles.Header.Render(title)

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyled,
		panel.Render(content),
	)
}

// renderStatusBar renders the bottom status bar with category tallies.
func (m *feedModel) renderStatusBar() string {
	stats := m.tracker.Stats()
	var parts []string

	for _, cc := range m.tracker.CategorySummary() {
		style := m.styles.Category(cc.Category)
		parts = append(parts, style.Render(fmt.Sprintf("%s %d", cc.Category.String(), cc.Paths)))
	}

	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}

	if len(parts) == 0 {
		return m.styles.Dim.Render("q to quit")
	}

	separator := m.styles.Dim.Render("  │  ")
	status := strings.Join(parts, separator)
	hint := m.styles.Dim.Render("  │  q to quit")

	return status + hint
}

// renderComplete renders the session summary.
func (m *feedModel) renderComplete() string {
	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var lines []string

	lines = append(lines, m.styles.Success.Render("✓ Watch Complete"))
	lines = append(lines, "")

	batchesLabel := m.styles.Label.Render("Batches:")
	pathsLabel := m.styles.Label.Render("Paths:")
	durationLabel := m.styles.Label.Render("Duration:")

	lines = append(lines, fmt.Sprintf("%s  %s", batchesLabel, m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Batches))))
	lines = append(lines, fmt.Sprintf("%s    %s", pathsLabel, m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Paths))))
	lines = append(lines, fmt.Sprintf("%s %s", durationLabel, m.styles.Active.Render(formatDuration(m.stats.Duration))))

	if m.stats.Backend != "" {
		backendLabel := m.styles.Label.Render("Backend:")
		lines = append(lines, fmt.Sprintf("%s  %s", backendLabel, m.styles.Active.Render(m.stats.Backend)))
	}

	if len(m.stats.PerCategory) > 0 {
		lines = append(lines, "")
		for _, cc := range m.stats.PerCategory {
			style := m.styles.Category(cc.Category)
			lines = append(lines, fmt.Sprintf("  %s %s",
				style.Render(fmt.Sprintf("%-8s", cc.Category.String())),
				m.styles.Label.Render(fmt.Sprintf("%d batches, %d paths", cc.Batches, cc.Paths))))
		}
	}

	if m.stats.Errors > 0 || m.stats.Warnings > 0 {
		lines = append(lines, "")
		if m.stats.Errors > 0 {
			lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.stats.Errors)))
		}
		if m.stats.Warnings > 0 {
			lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.stats.Warnings)))
		}
	}

	content := strings.Join(lines, "\n")

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorLime)).
		Padding(1, 2).
		Width(contentWidth)

	return panel.Render(content) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, mins)
}

// truncateFilePath truncates a path list to fit within maxLen, keeping
// the trailing filename readable.
func truncateFilePath(path string, maxLen int) string {
	if path == "" || len(path) <= maxLen {
		return path
	}

	parts := strings.Split(path, "/")
	if len(parts) == 1 {
		if maxLen < 4 {
			return "..."
		}
		return "..." + path[len(path)-maxLen+3:]
	}

	filename := parts[len(parts)-1]
	if len(filename)+4 > maxLen {
		return "..." + filename[len(filename)-maxLen+3:]
	}

	remaining := maxLen - len(filename) - 4 // 4 for ".../"
	if remaining <= 0 {
		return ".../" + filename
	}

	prefix := strings.Join(parts[:len(parts)-1], "/")
	if len(prefix) <= remaining {
		return path
	}

	return "..." + prefix[len(prefix)-remaining:] + "/" + filename
}

// Ensure FeedRenderer implements Renderer
var _ Renderer = (*FeedRenderer)(nil)
