package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/maskcloud/pkg/cloud/layout"
	"github.com/matzehuels/maskcloud/pkg/pipeline"
)

// Watch styles
var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
	wordStyle     = lipgloss.NewStyle().Foreground(colorWhite)
	droppedStyle  = lipgloss.NewStyle().Foreground(colorDim).Strikethrough(true)
)

const (
	barWidth    = 40
	recentWords = 6
)

// =============================================================================
// WatchModel - Live placement progress
// =============================================================================

// eventMsg carries one planner event into the model.
type eventMsg layout.Event

// doneMsg ends the watch with the pipeline's outcome.
type doneMsg struct {
	res *pipeline.Result
	err error
}

// recentWord is a word shown in the ticker under the progress bar.
type recentWord struct {
	word    string
	size    int
	dropped bool
}

// WatchModel is the bubbletea model for `generate --watch`.
type WatchModel struct {
	Target  int
	Placed  int
	Dropped int
	Pass    int
	Recent  []recentWord
	Start   time.Time

	Result *pipeline.Result
	Err    error

	cancel context.CancelFunc
}

// NewWatchModel creates a watch model. cancel aborts the pipeline when the
// user quits.
func NewWatchModel(target int, cancel context.CancelFunc) WatchModel {
	return WatchModel{Target: target, Start: time.Now(), cancel: cancel}
}

func (m WatchModel) Init() tea.Cmd {
	return nil
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			// Keep running until the pipeline reports back.
		}
	case eventMsg:
		m = m.apply(layout.Event(msg))
	case doneMsg:
		m.Result, m.Err = msg.res, msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m WatchModel) apply(e layout.Event) WatchModel {
	if e.Target > 0 {
		m.Target = e.Target
	}
	m.Placed = e.Placed
	m.Pass = e.Pass
	switch e.Kind {
	case layout.EventPlaced:
		size := 0
		if e.Placement != nil {
			size = e.Placement.FontSize
		}
		m.Recent = pushRecent(m.Recent, recentWord{word: e.Word, size: size})
	case layout.EventDropped:
		m.Dropped++
		m.Recent = pushRecent(m.Recent, recentWord{word: e.Word, dropped: true})
	}
	return m
}

func pushRecent(recent []recentWord, w recentWord) []recentWord {
	recent = append(recent, w)
	if len(recent) > recentWords {
		recent = recent[len(recent)-recentWords:]
	}
	return recent
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Placing words"))
	b.WriteString("\n\n")

	b.WriteString(progressBar(m.Placed, m.Target, barWidth))
	b.WriteString(" ")
	b.WriteString(StyleNumber.Render(fmt.Sprintf("%d/%d", m.Placed, m.Target)))
	b.WriteString("\n")

	status := fmt.Sprintf("pass %d · %d dropped · %s", max(m.Pass, 1), m.Dropped,
		time.Since(m.Start).Round(100*time.Millisecond))
	b.WriteString(StyleDim.Render(status))
	b.WriteString("\n\n")

	words := make([]string, len(m.Recent))
	for i, w := range m.Recent {
		if w.dropped {
			words[i] = droppedStyle.Render(w.word)
		} else {
			words[i] = wordStyle.Render(w.word) + StyleDim.Render(fmt.Sprintf(" %dpx", w.size))
		}
	}
	b.WriteString("  " + strings.Join(words, StyleDim.Render("  ")))
	b.WriteString("\n\n")
	b.WriteString(StyleDim.Render("q quit"))
	b.WriteString("\n")

	return b.String()
}

// progressBar renders done/total as a bar of width cells.
func progressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = min(width, done*width/total)
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// runWatch executes the pipeline while a bubbletea program shows planner
// events as they happen. Pipeline logging is silenced for the duration so it
// does not tear the display.
func (c *CLI) runWatch(ctx context.Context, runner *pipeline.Runner, in pipeline.Input, opts pipeline.Options) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	quiet := discardLogger()
	prev := runner.Logger
	runner.Logger = quiet
	defer func() { runner.Logger = prev }()
	opts.Logger = quiet

	p := tea.NewProgram(NewWatchModel(opts.MaxWords, cancel), tea.WithOutput(os.Stderr))
	opts.OnEvent = func(e layout.Event) {
		p.Send(eventMsg(e))
	}

	go func() {
		res, err := runner.Execute(ctx, in, opts)
		p.Send(doneMsg{res: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	m := final.(WatchModel)
	return m.Result, m.Err
}
