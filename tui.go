package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"mockinterview/clipboard"
	"mockinterview/gateway"
	"mockinterview/report"
	"mockinterview/session"
)

// controller is the part of session.Controller the TUI drives.
type controller interface {
	Snapshot() session.Snapshot
	Start(ctx context.Context, req session.StartRequest) error
	SubmitAnswer(ctx context.Context, text string) error
	End(ctx context.Context) error
	Reset()
	ToggleMic() error
	SaveReport() (string, error)
	ReportText() (string, error)
}

type opDoneMsg struct {
	op   string
	note string
	err  error
}

// setupChoices lists the form options and the preselected defaults.
type setupChoices struct {
	domains    []string
	levels     []string
	domain     string
	difficulty string
}

// setupValues is shared with the huh form, which writes through pointers.
type setupValues struct {
	domain     string
	difficulty string
	resume     string
}

type tuiModel struct {
	ctx     context.Context
	ctrl    controller
	history historyFetcher
	choices setupChoices

	snap     session.Snapshot
	form     *huh.Form
	setup    *setupValues
	chart    historyView
	answer   textinput.Model
	typing   bool
	busy     bool
	toggling bool
	notice   string

	width, height int
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	recStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleMicStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	scoreStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2).
			Align(lipgloss.Center)
)

func newTUIModel(ctx context.Context, ctrl controller, history historyFetcher, choices setupChoices, plot plotFunc) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "Type your answer"
	ti.CharLimit = 4000

	m := tuiModel{
		ctx:     ctx,
		ctrl:    ctrl,
		history: history,
		choices: choices,
		snap:    ctrl.Snapshot(),
		chart:   newHistoryView(plot),
		answer:  ti,
	}
	m.form, m.setup = m.newSetupForm()
	return m
}

func (m tuiModel) newSetupForm() (*huh.Form, *setupValues) {
	v := &setupValues{domain: m.choices.domain, difficulty: m.choices.difficulty}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Role").
				Options(huh.NewOptions(m.choices.domains...)...).
				Value(&v.domain),
			huh.NewSelect[string]().
				Title("Difficulty").
				Options(huh.NewOptions(m.choices.levels...)...).
				Value(&v.difficulty),
			huh.NewFilePicker().
				Title("Resume").
				Description("PDF only").
				AllowedTypes([]string{".pdf"}).
				Value(&v.resume),
		),
	).WithShowHelp(true)
	if m.width > 0 {
		form = form.WithWidth(min(m.width, 80))
	}
	return form, v
}

func (m tuiModel) loadHistoryCmd() tea.Cmd {
	if m.history == nil {
		return func() tea.Msg { return historyMsg{} }
	}
	ctx, f := m.ctx, m.history
	return func() tea.Msg {
		return historyMsg{points: loadHistory(ctx, f)}
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(m.form.Init(), m.loadHistoryCmd())
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.answer.Width = max(10, msg.Width-6)
		if m.form != nil {
			m.form = m.form.WithWidth(min(msg.Width, 80))
		}

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case sessionMsg:
		return m.applySnapshot(session.Snapshot(msg))

	case historyMsg:
		m.chart = m.chart.withPoints(msg.points)

	case opDoneMsg:
		if msg.op == "mic" {
			m.toggling = false
		} else {
			m.busy = false
		}
		m.notice = msg.note
		next, cmd := m.applySnapshot(m.ctrl.Snapshot())
		nm := next.(tuiModel)
		if msg.err != nil && !strings.HasPrefix(nm.snap.Status, "Error") {
			nm.notice = msg.err.Error()
		}
		if msg.op == "start" && msg.err != nil && nm.snap.Phase == session.PhaseSetup {
			nm.form, nm.setup = nm.newSetupForm()
			return nm, tea.Batch(cmd, nm.form.Init())
		}
		return nm, cmd
	}

	if m.snap.Phase == session.PhaseSetup && m.form != nil {
		return m.updateForm(msg)
	}
	if m.typing {
		var cmd tea.Cmd
		m.answer, cmd = m.answer.Update(msg)
		return m, cmd
	}
	return m, nil
}

// applySnapshot keeps the newest snapshot and rebuilds the setup screen when
// the session returns to it.
func (m tuiModel) applySnapshot(s session.Snapshot) (tea.Model, tea.Cmd) {
	if s.Version < m.snap.Version {
		return m, nil
	}
	prev := m.snap.Phase
	m.snap = s
	if s.Phase != session.PhaseChat {
		m.typing = false
		m.answer.Blur()
	}
	if prev != session.PhaseSetup && s.Phase == session.PhaseSetup {
		m.notice = ""
		m.chart = newHistoryView(m.chart.plot)
		m.form, m.setup = m.newSetupForm()
		return m, tea.Batch(m.form.Init(), m.loadHistoryCmd())
	}
	return m, nil
}

func (m tuiModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	fm, cmd := m.form.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		if m.busy {
			return m, cmd
		}
		m.busy = true
		req := session.StartRequest{
			Domain:     m.setup.domain,
			Difficulty: m.setup.difficulty,
			ResumePath: m.setup.resume,
		}
		return m, tea.Batch(cmd, m.run("start", func(ctx context.Context) (string, error) {
			return "", m.ctrl.Start(ctx, req)
		}))
	case huh.StateAborted:
		return m, tea.Quit
	}
	return m, cmd
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.snap.Phase {
	case session.PhaseChat:
		if m.typing {
			return m.handleTyping(msg)
		}
		switch msg.String() {
		case " ", "space":
			// capture start dials the recognizer and stop drains it
			if m.toggling {
				return m, nil
			}
			m.toggling = true
			return m, m.run("mic", func(context.Context) (string, error) {
				return "", m.ctrl.ToggleMic()
			})
		case "t":
			m.typing = true
			return m, m.answer.Focus()
		case "e":
			if m.busy {
				return m, nil
			}
			m.busy = true
			return m, m.run("end", func(ctx context.Context) (string, error) {
				return "", m.ctrl.End(ctx)
			})
		}
		return m, nil

	case session.PhaseResult:
		switch msg.String() {
		case "s":
			path, err := m.ctrl.SaveReport()
			m.notice = "Saved to " + path
			if err != nil {
				m.notice = "Save failed: " + err.Error()
			}
		case "c":
			m.notice = copyReport(m.ctrl)
		case "n":
			m.ctrl.Reset()
			return m.applySnapshot(m.ctrl.Snapshot())
		}
		return m, nil
	}

	if m.form != nil {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m tuiModel) handleTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.typing = false
		m.answer.Blur()
		m.answer.Reset()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.answer.Value())
		if text == "" || m.busy {
			return m, nil
		}
		m.typing = false
		m.answer.Blur()
		m.answer.Reset()
		m.busy = true
		return m, m.run("answer", func(ctx context.Context) (string, error) {
			return "", m.ctrl.SubmitAnswer(ctx, text)
		})
	}
	var cmd tea.Cmd
	m.answer, cmd = m.answer.Update(msg)
	return m, cmd
}

func copyReport(c controller) string {
	text, err := c.ReportText()
	if err != nil {
		return err.Error()
	}
	if err := clipboard.Copy(text); err != nil {
		return "Copy failed: " + err.Error()
	}
	return "Report copied to clipboard"
}

// run executes a blocking controller operation off the UI goroutine.
func (m tuiModel) run(op string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		note, err := fn(ctx)
		if errors.Is(err, session.ErrStaleResponse) {
			err = nil
		}
		return opDoneMsg{op: op, note: note, err: err}
	}
}

func (m tuiModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("AI Mock Interview"))
	if m.snap.Phase != session.PhaseSetup && m.snap.Domain != "" {
		b.WriteString(statusStyle.Render(fmt.Sprintf("  %s · %s", m.snap.Domain, m.snap.Difficulty)))
	}
	b.WriteString("\n")
	b.WriteString(renderStatus(m.snap.Status))
	b.WriteString("\n\n")

	switch m.snap.Phase {
	case session.PhaseSetup:
		b.WriteString(m.form.View())
		b.WriteString("\n\n")
		b.WriteString(m.chart.render(min(width, 72)))
	case session.PhaseChat:
		b.WriteString(m.chatView(width))
	case session.PhaseResult:
		b.WriteString(m.resultView(width))
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice))
	}
	return b.String()
}

func renderStatus(status string) string {
	if strings.HasPrefix(status, "Error") {
		return errorStyle.Render(status)
	}
	return statusStyle.Render(status)
}

func (m tuiModel) chatView(width int) string {
	wrapWidth := max(10, width-4)
	var lines []string
	for _, msg := range m.snap.Messages {
		label, style := "Interviewer", assistantStyle
		if msg.Role == gateway.RoleUser {
			label, style = "You", userStyle
		}
		if msg.Pending() {
			style = pendingStyle
		}
		lines = append(lines, helpKeyStyle.Render(label))
		for _, l := range wrapText(msg.Content, wrapWidth) {
			lines = append(lines, "  "+style.Render(l))
		}
		lines = append(lines, "")
	}

	// Keep the latest turns in view.
	if m.height > 0 {
		room := max(3, m.height-8)
		if len(lines) > room {
			lines = lines[len(lines)-room:]
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")

	switch {
	case !m.snap.MicEnabled:
		b.WriteString(idleMicStyle.Render("○ mic unavailable, press t to type"))
	case m.snap.Listening:
		b.WriteString(recStyle.Render("● LISTENING"))
	default:
		b.WriteString(idleMicStyle.Render("○ mic off"))
	}
	b.WriteString("\n")

	if m.typing {
		b.WriteString(m.answer.View())
		b.WriteString("\n")
		b.WriteString(help("enter", "send", "esc", "cancel"))
		return b.String()
	}
	b.WriteString(help("space", "mic", "t", "type", "e", "end interview", "ctrl+c", "quit"))
	return b.String()
}

func (m tuiModel) resultView(width int) string {
	fb := m.snap.Feedback
	if fb == nil {
		return errorStyle.Render("No report available.") + "\n\n" +
			help("n", "new interview", "ctrl+c", "quit")
	}

	card := func(title string, v float64) string {
		return scoreStyle.Render(title + "\n" + titleStyle.Render(report.Score(v)+"/10"))
	}
	scores := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Technical", fb.TechnicalScore),
		card("Communication", fb.CommunicationScore),
		card("Overall", fb.OverallScore),
	)

	wrapWidth := max(10, width-4)
	var b strings.Builder
	b.WriteString(scores)
	b.WriteString("\n\n")
	for _, l := range wrapText(fb.Summary, wrapWidth) {
		b.WriteString(l + "\n")
	}
	writeSection(&b, "Strengths", fb.Strengths, wrapWidth)
	writeSection(&b, "Weaknesses", fb.Weaknesses, wrapWidth)
	writeSection(&b, "Mistakes to avoid", fb.Mistakes, wrapWidth)
	b.WriteString("\n")
	b.WriteString(help("s", "save report", "c", "copy", "n", "new interview", "ctrl+c", "quit"))
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string, width int) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + helpKeyStyle.Render(title) + "\n")
	for _, it := range items {
		for i, l := range wrapText(it, width-2) {
			prefix := "  "
			if i == 0 {
				prefix = "• "
			}
			b.WriteString(prefix + l + "\n")
		}
	}
}

// help renders key/description pairs.
func help(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, helpKeyStyle.Render(pairs[i])+helpStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, helpStyle.Render(" · "))
}

// wrapText breaks text on spaces so no line is wider than width cells.
// Words wider than a line are split.
func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 1
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		var line strings.Builder
		lineWidth := 0
		for _, word := range strings.Fields(para) {
			w := runewidth.StringWidth(word)
			for w > width {
				if lineWidth > 0 {
					lines = append(lines, line.String())
					line.Reset()
					lineWidth = 0
				}
				head := runewidth.Truncate(word, width, "")
				if head == "" {
					head = string([]rune(word)[:1])
				}
				lines = append(lines, head)
				word = word[len(head):]
				w = runewidth.StringWidth(word)
			}
			if word == "" {
				continue
			}
			switch {
			case lineWidth == 0:
			case lineWidth+1+w > width:
				lines = append(lines, line.String())
				line.Reset()
				lineWidth = 0
			default:
				line.WriteByte(' ')
				lineWidth++
			}
			line.WriteString(word)
			lineWidth += w
		}
		lines = append(lines, line.String())
	}
	return lines
}
