package history

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	breathdto "breathkit/internal/modules/breath/dto"
	"breathkit/internal/platform/markdown"
	"breathkit/internal/ui/theme"
)

const listLimit = 100

// ─── port ────────────────────────────────────────────────────────────────────

type Port interface {
	History(ctx context.Context, limit int) ([]breathdto.SummaryOutput, error)
	GetNote(ctx context.Context, id string) (breathdto.NoteOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type SessionsLoadedMsg struct {
	Sessions []breathdto.SummaryOutput
	Err      error
}

type NoteLoadedMsg struct {
	Note breathdto.NoteOutput
	Err  error
}

// ─── list item ───────────────────────────────────────────────────────────────

type sessionItem struct {
	summary breathdto.SummaryOutput
}

func (i sessionItem) Title() string {
	return i.summary.StartedAt.Local().Format("2006-01-02 15:04")
}

func (i sessionItem) Description() string {
	status := "partial"
	if i.summary.Completed {
		status = "complete"
	}
	return fmt.Sprintf("%s  %d/%d sets  %d breaths", status, i.summary.SetsCompleted, i.summary.Sets, i.summary.BreathCount)
}

func (i sessionItem) FilterValue() string { return i.summary.ID }

// ─── model ───────────────────────────────────────────────────────────────────

// Model lists past trainings and previews the selected session note.
type Model struct {
	port     Port
	list     list.Model
	preview  viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	loading  bool
	width    int
	height   int
}

func New(port Port) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "History"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().
		Background(theme.Mantle).
		Foreground(theme.Text).
		Padding(1)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	r, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(0),
	)

	return Model{
		port:     port,
		list:     l,
		preview:  vp,
		spinner:  sp,
		renderer: r,
		loading:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Reload(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case SessionsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.list.Title = "History: " + msg.Err.Error()
			return m, nil
		}
		items := make([]list.Item, len(msg.Sessions))
		for i, s := range msg.Sessions {
			items[i] = sessionItem{summary: s}
		}
		cmds = append(cmds, m.list.SetItems(items))
		if len(msg.Sessions) > 0 {
			cmds = append(cmds, m.loadNoteCmd(msg.Sessions[0].ID))
		} else {
			m.preview.SetContent(theme.Muted.Render("No trainings recorded yet"))
		}

	case NoteLoadedMsg:
		if msg.Err != nil {
			m.preview.SetContent(theme.Hot.Render("Error: " + msg.Err.Error()))
		} else {
			m.preview.SetContent(m.renderNote(msg.Note.Markdown))
			m.preview.GotoTop()
		}

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if !m.loading {
		var lCmd tea.Cmd
		prevIdx := m.list.Index()
		m.list, lCmd = m.list.Update(msg)
		cmds = append(cmds, lCmd)
		if m.list.Index() != prevIdx {
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				cmds = append(cmds, m.loadNoteCmd(item.summary.ID))
			}
		}

		var vCmd tea.Cmd
		m.preview, vCmd = m.preview.Update(msg)
		cmds = append(cmds, vCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading history…")
	}

	listW := m.width * 4 / 10
	detailW := m.width - listW

	listPane := lipgloss.NewStyle().
		Width(listW).
		Height(m.height).
		Render(m.list.View())

	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Background(theme.Mantle).
		Width(detailW - 2).
		Height(m.height - 2).
		Render(m.preview.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

// Reload refetches the session list, e.g. after a training was saved.
func (m Model) Reload() tea.Cmd {
	return func() tea.Msg {
		sessions, err := m.port.History(context.Background(), listLimit)
		return SessionsLoadedMsg{Sessions: sessions, Err: err}
	}
}

// Filtering reports whether the list's search filter is currently active.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m *Model) resize() {
	listW := m.width * 4 / 10
	detailW := m.width - listW
	m.list.SetSize(listW, m.height)
	m.preview.Width = detailW - 4
	m.preview.Height = m.height - 4
	if r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(m.preview.Width-2),
	); err == nil {
		m.renderer = r
	}
}

func (m Model) renderNote(raw string) string {
	_, body, err := markdown.SplitFrontmatter(raw)
	if err != nil {
		body = raw
	}
	if m.renderer == nil {
		return body
	}
	rendered, err := m.renderer.Render(body)
	if err != nil {
		return body
	}
	return rendered
}

func (m Model) loadNoteCmd(id string) tea.Cmd {
	return func() tea.Msg {
		note, err := m.port.GetNote(context.Background(), id)
		return NoteLoadedMsg{Note: note, Err: err}
	}
}
