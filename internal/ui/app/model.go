package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	breathdto "breathkit/internal/modules/breath/dto"
	"breathkit/internal/platform/clock"
	apperrors "breathkit/internal/platform/errors"
	"breathkit/internal/ui/components"
	"breathkit/internal/ui/theme"
	historyview "breathkit/internal/ui/views/history"
	trainview "breathkit/internal/ui/views/train"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type trainingPort interface {
	Begin(ctx context.Context, input breathdto.BeginInput) (breathdto.FrameOutput, error)
	Step(ctx context.Context, dt float64) (breathdto.FrameOutput, error)
	StartSet(ctx context.Context) (breathdto.FrameOutput, error)
	Pause(ctx context.Context) (breathdto.FrameOutput, error)
	Resume(ctx context.Context) (breathdto.FrameOutput, error)
	End(ctx context.Context) (breathdto.SummaryOutput, error)
	SetTargets(ctx context.Context, input breathdto.TargetsInput) (breathdto.TargetsOutput, error)
	History(ctx context.Context, limit int) ([]breathdto.SummaryOutput, error)
	GetNote(ctx context.Context, id string) (breathdto.NoteOutput, error)
}

// Options configure the training the dashboard starts.
type Options struct {
	Begin         breathdto.BeginInput
	FrameInterval time.Duration
	// Clock measures frame deltas. Defaults to the system clock.
	Clock clock.Clock
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabTrain tabID = iota
	tabHistory
	tabCount
)

var tabLabels = [tabCount]string{"Train", "History"}

// ─── async messages ───────────────────────────────────────────────────────────

type tickMsg struct{ gen int }

type frameMsg struct {
	gen    int
	action string
	frame  breathdto.FrameOutput
	err    error
}

type endedMsg struct {
	summary breathdto.SummaryOutput
	err     error
	quit    bool
}

type targetsMsg struct {
	out breathdto.TargetsOutput
	err error
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Tab      key.Binding
	Help     key.Binding
	Palette  key.Binding
	Quit     key.Binding
	Begin    key.Binding
	StartSet key.Binding
	Pause    key.Binding
	End      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette:  key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Begin:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "begin training")),
		StartSet: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start set")),
		Pause:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
		End:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end training")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Begin, k.StartSet, k.Pause, k.End},
		{k.Tab, k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It drives the active training one
// frame per tick and routes everything else to the sub-views.
type Model struct {
	port     trainingPort
	opts     Options
	frames   *clock.Frame
	gen      int
	running  bool
	quitting bool

	trainView   trainview.Model
	historyView historyview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int
}

// ─── constructor ─────────────────────────────────────────────────────────────

func NewModel(port trainingPort, opts Options) Model {
	if opts.Clock == nil {
		opts.Clock = clock.SystemClock{}
	}
	return Model{
		port:        port,
		opts:        opts,
		trainView:   trainview.New(),
		historyView: historyview.New(port),
		activeTab:   tabTrain,
		keys:        defaultKeys(),
		help:        help.New(),
		palette:     components.NewPalette(),
		status:      "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.historyView.Init(), m.beginCmd())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.palette.Visible() {
		if _, ok := msg.(tea.KeyMsg); ok {
			var cmd tea.Cmd
			m.palette, cmd = m.palette.Update(msg)
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.propagateSize()
		return m, nil

	case tickMsg:
		if !m.running || msg.gen != m.gen {
			return m, nil
		}
		return m, m.stepCmd()

	case frameMsg:
		return m.handleFrame(msg)

	case endedMsg:
		m.running = false
		if msg.err != nil && !errors.Is(msg.err, apperrors.ErrNoActiveTraining) {
			m.status = "end training: " + msg.err.Error()
		} else if msg.err == nil {
			m.trainView.SetSummary(msg.summary)
			m.status = "training saved"
			cmds = append(cmds, m.historyView.Reload())
		}
		if msg.quit {
			return m, tea.Quit
		}
		return m, tea.Batch(cmds...)

	case targetsMsg:
		if msg.err != nil {
			m.status = "targets: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("targets saved: %d sets x %d breaths", msg.out.Sets, msg.out.BreathsPerSet)
		}
		return m, nil

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.activeTab == tabHistory && m.historyView.Filtering() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case key.Matches(msg, m.keys.Tab):
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case msg.String() == "shift+tab":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.Palette):
			return m, m.palette.Open()
		}
		if m.activeTab == tabTrain {
			switch {
			case key.Matches(msg, m.keys.Begin):
				return m, m.beginCmd()
			case key.Matches(msg, m.keys.StartSet):
				return m, m.commandCmd("start set", m.port.StartSet)
			case key.Matches(msg, m.keys.Pause):
				if m.trainView.Frame().Paused {
					return m, m.commandCmd("resume", m.port.Resume)
				}
				return m, m.commandCmd("pause", m.port.Pause)
			case key.Matches(msg, m.keys.End):
				return m, m.endCmd(false)
			}
			return m, nil
		}
	}

	var tabCmd tea.Cmd
	switch m.activeTab {
	case tabTrain:
		m.trainView, tabCmd = m.trainView.Update(msg)
	case tabHistory:
		m.historyView, tabCmd = m.historyView.Update(msg)
	}
	// History must keep receiving its async load results while hidden.
	if m.activeTab != tabHistory {
		switch msg.(type) {
		case historyview.SessionsLoadedMsg, historyview.NoteLoadedMsg:
			var cmd tea.Cmd
			m.historyView, cmd = m.historyView.Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	cmds = append(cmds, tabCmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleFrame(msg frameMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, apperrors.ErrNoActiveTraining):
			m.running = false
			m.status = "no active training"
			return m, nil
		case msg.action == "step":
			// The source failed or ran out; keep what was recorded.
			m.status = "source stopped: " + msg.err.Error()
			return m, m.endCmd(false)
		default:
			m.status = msg.action + ": " + msg.err.Error()
			return m, nil
		}
	}
	if msg.action == "step" && msg.gen != m.gen {
		return m, nil
	}

	var cmds []tea.Cmd
	if msg.action == "begin" {
		m.trainView.Reset()
		m.frames = clock.NewFrame(m.opts.Clock)
		m.frames.Delta()
		m.gen++
		m.running = true
		m.status = "training started"
		cmds = append(cmds, m.tickCmd())
	}
	m.trainView.SetFrame(msg.frame)

	if msg.frame.Summary != nil {
		m.running = false
		m.status = "session complete"
		return m, m.historyView.Reload()
	}
	if msg.action == "step" {
		if m.opts.Begin.AutoStart && frameHas(msg.frame, "set_complete") {
			cmds = append(cmds, m.commandCmd("start set", m.port.StartSet))
		}
		cmds = append(cmds, m.tickCmd())
	} else if msg.action != "begin" {
		m.status = msg.action
	}
	return m, tea.Batch(cmds...)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.running && !m.quitting {
		m.quitting = true
		m.status = "saving training…"
		return m, m.endCmd(true)
	}
	return m, tea.Quit
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(tabBar) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	case m.activeTab == tabHistory:
		content = m.historyView.View()
	default:
		content = m.trainView.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		label := tabLabels[i]
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(" " + label + " ")
		} else {
			parts[i] = theme.Muted.Render(" " + label + " ")
		}
	}
	bar := "breathkit  " + strings.Join(parts, theme.Muted.Render(" │ "))
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.running {
		left = theme.Hot.Render("● training") + "  " + left
	}
	right := theme.Muted.Render("b:begin  s:set  p:pause  e:end  ?:help  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	switch parts[0] {
	case "train:start":
		return m, m.beginCmd()
	case "train:end":
		return m, m.endCmd(false)
	case "set:start":
		return m, m.commandCmd("start set", m.port.StartSet)
	case "pause":
		return m, m.commandCmd("pause", m.port.Pause)
	case "resume":
		return m, m.commandCmd("resume", m.port.Resume)
	case "targets":
		if len(parts) != 3 {
			m.status = "usage: targets <sets> <breaths>"
			return m, nil
		}
		sets, err1 := strconv.ParseUint(parts[1], 10, 32)
		breaths, err2 := strconv.ParseUint(parts[2], 10, 32)
		if err1 != nil || err2 != nil {
			m.status = "targets must be positive integers"
			return m, nil
		}
		return m, m.setTargetsCmd(uint(sets), uint(breaths))
	case "history:reload":
		m.activeTab = tabHistory
		return m, m.historyView.Reload()
	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: m.height - 3}
	m.trainView, _ = m.trainView.Update(sz)
	m.historyView, _ = m.historyView.Update(sz)
}

func frameHas(frame breathdto.FrameOutput, kind string) bool {
	for _, e := range frame.Events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) tickCmd() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.opts.FrameInterval, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

func (m Model) beginCmd() tea.Cmd {
	return func() tea.Msg {
		frame, err := m.port.Begin(context.Background(), m.opts.Begin)
		return frameMsg{action: "begin", frame: frame, err: err}
	}
}

// stepCmd is only issued after the previous frame arrived, so the frame
// clock is never read concurrently.
func (m Model) stepCmd() tea.Cmd {
	frames, gen := m.frames, m.gen
	return func() tea.Msg {
		frame, err := m.port.Step(context.Background(), frames.Delta())
		return frameMsg{gen: gen, action: "step", frame: frame, err: err}
	}
}

func (m Model) commandCmd(action string, fn func(context.Context) (breathdto.FrameOutput, error)) tea.Cmd {
	return func() tea.Msg {
		frame, err := fn(context.Background())
		return frameMsg{action: action, frame: frame, err: err}
	}
}

func (m Model) endCmd(quit bool) tea.Cmd {
	return func() tea.Msg {
		summary, err := m.port.End(context.Background())
		return endedMsg{summary: summary, err: err, quit: quit}
	}
}

func (m Model) setTargetsCmd(sets, breaths uint) tea.Cmd {
	return func() tea.Msg {
		out, err := m.port.SetTargets(context.Background(), breathdto.TargetsInput{Sets: sets, BreathsPerSet: breaths})
		return targetsMsg{out: out, err: err}
	}
}
