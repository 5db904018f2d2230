package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/musicmind/academy/go/internal/presentation/render"
	"github.com/musicmind/academy/go/internal/presentation/session"
)

// ViewMsg carries a reader view into the program.
type ViewMsg struct {
	View session.View
}

// Model draws the current screen of one presentation reader.
type Model struct {
	renderer *render.Renderer
	view     session.View
	screen   render.Screen
	width    int
	height   int
}

func New(renderer *render.Renderer) Model {
	return Model{
		renderer: renderer,
		screen:   renderer.Render(session.View{Phase: session.PhaseNoSession}),
	}
}

// Init is a no-op: views arrive from the reader.
func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case ViewMsg:
		m.view = msg.View
		m.screen = m.renderer.Render(msg.View)
	}
	return m, nil
}

func (m Model) View() string {
	body := m.renderScreen()
	footer := Muted.Render("q: quit")
	if m.width == 0 || m.height == 0 {
		return lipgloss.JoinVertical(lipgloss.Center, body, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, body),
		footer,
	)
}

// Screen returns the screen last rendered.
func (m Model) Screen() render.Screen {
	return m.screen
}

func (m Model) renderScreen() string {
	s := m.screen
	lines := []string{Title.Render(s.Title)}

	switch s.Kind {
	case render.ScreenLocked:
		lines = append(lines, "", Muted.Render("Session code"), Code.Render(s.SessionCode))
	default:
		if s.Subtitle != "" {
			lines = append(lines, Muted.Render(s.Subtitle))
		}
	}

	if s.Timer != nil {
		lines = append(lines, "", m.renderTimer(*s.Timer))
	}
	return Card.Render(strings.Join(lines, "\n"))
}

func (m Model) renderTimer(t render.TimerDisplay) string {
	clock := lipgloss.NewStyle().Foreground(TierColor(t.Tier)).Bold(true).Render(t.Clock)
	if !t.Running {
		clock += Muted.Render("  paused")
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		clock,
		progressBar(t.Progress, 30),
		Muted.Render(fmt.Sprintf("%s elapsed  %d%%", t.Elapsed, t.Percent)),
	)
}

func progressBar(progress float64, width int) string {
	filled := int(progress * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + Muted.Render(strings.Repeat("░", width-filled))
}

// Forward returns a reader observer that feeds p.
func Forward(p *tea.Program) session.Observer {
	return func(v session.View) {
		p.Send(ViewMsg{View: v})
	}
}

// NewProgram builds the full-screen program for a reader.
func NewProgram(ctx context.Context, renderer *render.Renderer) *tea.Program {
	return tea.NewProgram(New(renderer), tea.WithAltScreen(), tea.WithContext(ctx))
}

// Run runs p until the user quits or ctx is done.
func Run(p *tea.Program) error {
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run presentation screen: %w", err)
	}
	return nil
}
