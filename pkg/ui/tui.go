package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/spreadget/business/stream/infra/wsapi"
	"github.com/fd1az/spreadget/pkg/ui/components"
)

// phase tracks which region set the view renders.
type phase string

const (
	phaseConnecting phase = "connecting"
	phaseStreaming  phase = "streaming"
	phaseEnded      phase = "ended"
	phaseFailed     phase = "failed"
)

// Model is the Bubble Tea model for the dashboard: a symbol banner, the
// spread line, and the two book tables side by side.
type Model struct {
	symbol string

	phase      phase
	attempt    int
	summary    wsapi.WireSummary
	lastUpdate time.Time
	err        error

	spin     spinner.Model
	width    int
	height   int
	quitting bool
}

// New creates the dashboard model for symbol.
func New(symbol string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StatusConnecting

	return Model{
		symbol: symbol,
		phase:  phaseConnecting,
		spin:   sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case ConnectingMsg:
		m.phase = phaseConnecting
		m.attempt = msg.Attempt

	case ConnectedMsg:
		m.phase = phaseStreaming

	case SummaryMsg:
		m.phase = phaseStreaming
		m.summary = msg.Summary
		m.lastUpdate = time.Now()

	case StreamEndedMsg:
		m.phase = phaseEnded

	case ErrorMsg:
		m.phase = phaseFailed
		m.err = msg.Error

	case TickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(BannerStyle.Render("spreadget " + strings.ToUpper(m.symbol)))
	sb.WriteString("\n\n")

	switch m.phase {
	case phaseConnecting:
		sb.WriteString(m.spin.View())
		sb.WriteString(StatusConnecting.Render(
			fmt.Sprintf(" connecting to summary stream (attempt %d)", max(m.attempt, 1))))
		sb.WriteString("\n")

	case phaseFailed:
		sb.WriteString(StatusDisconnected.Render("stream unavailable: " + m.err.Error()))
		sb.WriteString("\n")

	case phaseEnded:
		sb.WriteString(StatusDisconnected.Render("stream ended; waiting for restart"))
		sb.WriteString("\n\n")
		sb.WriteString(m.renderBook())

	case phaseStreaming:
		sb.WriteString(m.renderSpread())
		sb.WriteString("\n\n")
		sb.WriteString(m.renderBook())
	}

	sb.WriteString("\n")
	sb.WriteString(HelpStyle.Render("q: quit"))
	return sb.String()
}

func (m Model) renderSpread() string {
	line := fmt.Sprintf("spread %.8f", m.summary.Spread)

	style := PositiveValue
	if m.summary.Spread < 0 {
		// Crossed book; worth shouting about.
		style = NegativeValue
		line += "  (crossed)"
	}

	age := ""
	if !m.lastUpdate.IsZero() {
		age = MutedValue.Render(fmt.Sprintf("  updated %s ago", time.Since(m.lastUpdate).Truncate(time.Millisecond)))
	}

	return StatusConnected.Render("● live ") + style.Render(line) + age
}

func (m Model) renderBook() string {
	bids := components.SideTable("BIDS", m.summary.Bids)
	asks := components.SideTable("ASKS", m.summary.Asks)
	return lipgloss.JoinHorizontal(lipgloss.Top, bids, " ", asks)
}
