package train

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	breathdto "breathkit/internal/modules/breath/dto"
	"breathkit/internal/ui/theme"
)

const maxRecent = 6

// Model renders the live training frame. It owns no ports; the app model
// feeds it frames.
type Model struct {
	frame   breathdto.FrameOutput
	recent  []breathdto.BreathOutput
	events  []string
	summary *breathdto.SummaryOutput
	breath  progress.Model
	sets    progress.Model
	width   int
	height  int
}

func New() Model {
	return Model{
		breath: progress.New(progress.WithGradient(string(theme.Sapphire), string(theme.Green))),
		sets:   progress.New(progress.WithSolidFill(string(theme.Lavender))),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
		w := msg.Width - 16
		if w > 60 {
			w = 60
		}
		if w < 10 {
			w = 10
		}
		m.breath.Width = w
		m.sets.Width = w
	}
	return m, nil
}

// SetFrame records a frame, keeping the last few breaths and events.
func (m *Model) SetFrame(frame breathdto.FrameOutput) {
	m.frame = frame
	m.recent = append(m.recent, frame.Breaths...)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
	for _, e := range frame.Events {
		m.events = append(m.events, describeEvent(e))
	}
	if len(m.events) > maxRecent {
		m.events = m.events[len(m.events)-maxRecent:]
	}
	if frame.Summary != nil {
		m.summary = frame.Summary
	}
}

// SetSummary shows the result of a training ended from outside the frame loop.
func (m *Model) SetSummary(summary breathdto.SummaryOutput) {
	m.summary = &summary
}

// Reset clears everything before a new training.
func (m *Model) Reset() {
	m.frame = breathdto.FrameOutput{}
	m.recent = nil
	m.events = nil
	m.summary = nil
}

func (m Model) Frame() breathdto.FrameOutput { return m.frame }

func (m Model) View() string {
	left := lipgloss.JoinVertical(lipgloss.Left, m.renderBreath(), "", m.renderSession())
	right := lipgloss.JoinVertical(lipgloss.Left, m.renderRecent(), "", m.renderEvents())

	leftW := m.width / 2
	if leftW < 30 {
		return lipgloss.JoinVertical(lipgloss.Left, left, "", right)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		theme.Pane.Width(leftW-4).Render(left),
		theme.Pane.Width(m.width-leftW-4).Render(right),
	)
}

func (m Model) renderBreath() string {
	f := m.frame
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Breath") + "\n\n")
	state := theme.Muted.Render("idle")
	if f.Exhaling {
		state = theme.Hot.Render("exhaling")
	}
	sb.WriteString(fmt.Sprintf("%s %s   %s %.2f\n", theme.Muted.Render("state"), state, theme.Muted.Render("pressure"), f.Pressure))
	sb.WriteString(fmt.Sprintf("%s %.1fs\n\n", theme.Muted.Render("length"), f.BreathLength))
	sb.WriteString(m.breath.ViewAs(clamp01(f.BreathPercentage)) + "\n\n")
	sb.WriteString(fmt.Sprintf("%s %d   %s %s   %s %s",
		theme.Muted.Render("count"), f.BreathCount,
		theme.Muted.Render("good"), theme.Good.Render(fmt.Sprint(f.GoodBreaths)),
		theme.Muted.Render("bad"), theme.Bad.Render(fmt.Sprint(f.BadBreaths)),
	))
	return sb.String()
}

func (m Model) renderSession() string {
	f := m.frame
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Session") + "\n\n")
	switch {
	case m.summary != nil:
		sb.WriteString(m.renderSummary())
		return sb.String()
	case !f.SessionStarted:
		sb.WriteString(theme.Muted.Render("not started"))
		return sb.String()
	case f.Paused:
		sb.WriteString(theme.Warn.Render("paused") + "\n")
	case !f.SetStarted:
		sb.WriteString(theme.Muted.Render("waiting for the next set") + "\n")
	default:
		sb.WriteString(theme.Good.Render("in set") + "\n")
	}
	sb.WriteString(fmt.Sprintf("%s %d/%d   %s %d/%d\n\n",
		theme.Muted.Render("set"), f.CurrentSet, f.Sets,
		theme.Muted.Render("breath"), f.CurrentBreath, f.BreathsPerSet,
	))
	sb.WriteString(m.sets.ViewAs(setProgress(f)))
	if f.IdleSeconds >= 1 && !f.Paused {
		sb.WriteString("\n" + theme.Muted.Render(fmt.Sprintf("idle %.0fs", f.IdleSeconds)))
	}
	return sb.String()
}

func (m Model) renderSummary() string {
	s := m.summary
	status := theme.Warn.Render("ended early")
	if s.Completed {
		status = theme.Good.Render("complete")
	}
	var sb strings.Builder
	sb.WriteString(status + "\n")
	sb.WriteString(fmt.Sprintf("%s %d/%d   %s %d (%d good, %d bad)\n",
		theme.Muted.Render("sets"), s.SetsCompleted, s.Sets,
		theme.Muted.Render("breaths"), s.BreathCount, s.GoodBreaths, s.BadBreaths))
	sb.WriteString(fmt.Sprintf("%s %.1fs   %s %.0fs\n",
		theme.Muted.Render("longest"), s.LongestBreath,
		theme.Muted.Render("duration"), s.DurationSeconds))
	if s.NotePath != "" {
		sb.WriteString(theme.Muted.Render("note ") + s.NotePath)
	}
	return sb.String()
}

func (m Model) renderRecent() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Recent breaths") + "\n\n")
	if len(m.recent) == 0 {
		sb.WriteString(theme.Muted.Render("none yet"))
		return sb.String()
	}
	for i := len(m.recent) - 1; i >= 0; i-- {
		b := m.recent[i]
		full := " "
		if b.Full {
			full = theme.Good.Render("✓")
		}
		sb.WriteString(fmt.Sprintf("#%-3d %5.1fs %4.0f%% %s %s\n",
			b.Count, b.Length, b.Percentage*100, full,
			theme.Quality(b.Quality).Render(strings.Repeat("●", b.Quality)+strings.Repeat("○", 4-b.Quality)),
		))
	}
	return sb.String()
}

func (m Model) renderEvents() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Events") + "\n\n")
	if len(m.events) == 0 {
		sb.WriteString(theme.Muted.Render("none yet"))
		return sb.String()
	}
	for i := len(m.events) - 1; i >= 0; i-- {
		sb.WriteString(m.events[i] + "\n")
	}
	return sb.String()
}

func describeEvent(e breathdto.EventOutput) string {
	switch e.Kind {
	case "session_started":
		return "session started"
	case "set_started":
		return fmt.Sprintf("set %d started", e.Set)
	case "set_complete":
		return theme.Good.Render(fmt.Sprintf("set %d complete", e.Set))
	case "session_complete":
		return theme.Good.Render("session complete")
	case "session_paused":
		return theme.Warn.Render("paused")
	case "session_resumed":
		return "resumed"
	}
	return e.Kind
}

func setProgress(f breathdto.FrameOutput) float64 {
	if f.BreathsPerSet == 0 {
		return 0
	}
	return clamp01(float64(f.CurrentBreath) / float64(f.BreathsPerSet))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
