// Package tui is the interactive terminal front end: live progress bars for
// the action slot and both auto-runs, an event log and a command line that
// feeds the console router.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"idlecraft/internal/catalog"
	"idlecraft/internal/eventbus"
	"idlecraft/internal/game"
	"idlecraft/internal/production"
)

const (
	refreshInterval = 100 * time.Millisecond
	logLines        = 12
)

// Executor runs one command line. *console.Console satisfies it.
type Executor interface {
	Exec(ctx context.Context, line string) (string, error)
}

type Options struct {
	Production *production.Service
	Commands   Executor
	// Events and Lines are optional feeds appended to the log panel.
	Events <-chan eventbus.Event
	Lines  <-chan string
}

type tickMsg time.Time
type eventMsg eventbus.Event
type lineMsg string

// App is the bubbletea model.
type App struct {
	ctx    context.Context
	prod   *production.Service
	cmds   Executor
	events <-chan eventbus.Event
	lines  <-chan string

	input textinput.Model
	bar   progress.Model

	status production.Status
	log    []string
	width  int
	height int
}

func New(ctx context.Context, opts Options) *App {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "help"
	in.CharLimit = 200
	in.Focus()

	a := &App{
		ctx:    ctx,
		prod:   opts.Production,
		cmds:   opts.Commands,
		events: opts.Events,
		lines:  opts.Lines,
		input:  in,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	a.status = a.prod.Status()
	return a
}

// Run blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, scheduleTick(), waitEvent(a.events), waitLine(a.lines))
}

func scheduleTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitEvent(ch <-chan eventbus.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func waitLine(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return lineMsg(s)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.bar.Width = max(10, min(60, msg.Width-30))
		a.input.Width = max(10, msg.Width-4)
		return a, nil

	case tickMsg:
		a.status = a.prod.Status()
		return a, scheduleTick()

	case eventMsg:
		if line := describeEvent(eventbus.Event(msg)); line != "" {
			a.appendLog(line)
		}
		return a, waitEvent(a.events)

	case lineMsg:
		a.appendLog(string(msg))
		return a, waitLine(a.lines)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return a, tea.Quit
		case tea.KeyEnter:
			a.submit()
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) submit() {
	line := strings.TrimSpace(a.input.Value())
	a.input.SetValue("")
	if line == "" {
		return
	}
	if line == "quit" || line == "exit" {
		a.appendLog("press esc to quit")
		return
	}
	a.appendLog("> " + line)
	out, err := a.cmds.Exec(a.ctx, line)
	switch {
	case err != nil:
		a.appendLog("error: " + err.Error())
	case out != "":
		for _, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
			a.appendLog(l)
		}
	}
	a.status = a.prod.Status()
}

func (a *App) appendLog(s string) {
	a.log = append(a.log, s)
	if n := len(a.log) - logLines; n > 0 {
		a.log = append(a.log[:0], a.log[n:]...)
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Width(10)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

func (a *App) View() string {
	st := a.status
	rows := []string{
		a.renderAction(st),
		a.renderRun("tome", st.Tome, st.Now),
		a.renderRun("afk", st.AFK, st.Now),
	}
	if w := st.AutoCook; w != nil {
		left := max(w.Until.Sub(st.Now), 0).Round(100 * time.Millisecond)
		rows = append(rows, labelStyle.Render("autocook")+fmt.Sprintf("%s · %d cooked · %s left", w.Locked, w.Cooked, left))
	}
	if ts := st.TomeSlot; ts != nil {
		rows = append(rows, labelStyle.Render("equipped")+fmt.Sprintf("%s x%d", ts.Item, ts.Qty))
	}
	rows = append(rows, labelStyle.Render("levels")+renderLevels(st.Levels))

	logBody := dimStyle.Render("no events yet")
	if len(a.log) > 0 {
		logBody = strings.Join(a.log, "\n")
	}
	return strings.Join([]string{
		titleStyle.Render("⚒ IDLECRAFT"),
		boxStyle.Render(strings.Join(rows, "\n")),
		boxStyle.Render(logBody),
		a.input.View(),
		dimStyle.Render("enter → run command    esc → quit"),
	}, "\n")
}

func (a *App) renderAction(st production.Status) string {
	act := st.Action
	if act == nil {
		return labelStyle.Render("action") + dimStyle.Render("idle")
	}
	left := max(act.EndsAt.Sub(st.Now), 0).Round(100 * time.Millisecond)
	return labelStyle.Render("action") + a.bar.ViewAs(st.Progress) +
		fmt.Sprintf(" %s %s · %s left", act.Type, act.Key, left)
}

func (a *App) renderRun(label string, r *game.AutoRun, now time.Time) string {
	if r == nil {
		return labelStyle.Render(label) + dimStyle.Render("-")
	}
	return labelStyle.Render(label) + a.bar.ViewAs(runProgress(r, now)) +
		fmt.Sprintf(" %s %s · %d ticks · %s left", r.Activity, r.SourceID, r.Ticks, max(r.EndsAt.Sub(now), 0).Round(time.Second))
}

func runProgress(r *game.AutoRun, now time.Time) float64 {
	total := r.EndsAt.Sub(r.StartedAt)
	if total <= 0 {
		return 1
	}
	return min(max(float64(now.Sub(r.StartedAt))/float64(total), 0), 1)
}

func renderLevels(levels map[catalog.Skill]int) string {
	parts := make([]string, 0, len(catalog.Skills))
	for _, sk := range catalog.Skills {
		parts = append(parts, fmt.Sprintf("%s %d", sk, levels[sk]))
	}
	return strings.Join(parts, " · ")
}

// describeEvent renders the events worth a log line; ticks are too chatty.
func describeEvent(e eventbus.Event) string {
	switch d := e.Data.(type) {
	case eventbus.ActionData:
		switch e.Type {
		case eventbus.ActionFinished:
			s := fmt.Sprintf("%s %s done", d.Kind, d.ID)
			if d.Outcome != "" && d.Outcome != "normal" {
				s += " (" + d.Outcome + ")"
			}
			return s
		case eventbus.ActionAborted:
			return fmt.Sprintf("%s %s aborted", d.Kind, d.ID)
		}
	case eventbus.RunData:
		switch e.Type {
		case eventbus.AutoRunStarted:
			return fmt.Sprintf("%s run %s started", d.Source, d.RunID)
		case eventbus.AutoRunEnded:
			return fmt.Sprintf("%s run %s ended after %d ticks", d.Source, d.RunID, d.Ticks)
		case eventbus.AutoRunChained:
			return fmt.Sprintf("%s run chained (%d charges left)", d.Source, d.Charges)
		}
	case eventbus.CookData:
		switch e.Type {
		case eventbus.AutoCookOpened:
			return fmt.Sprintf("perfect cook: auto-cooking %s", d.Raw)
		case eventbus.AutoCookClosed:
			return fmt.Sprintf("auto-cook closed (%d cooked)", d.Cooked)
		}
	}
	return ""
}
