// Package components renders the dashboard's table regions.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/spreadget/business/stream/infra/wsapi"
)

// maxRows matches the merged summary's per-side depth bound.
const maxRows = 10

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorBorder  = lipgloss.Color("#374151")
	colorMuted   = lipgloss.Color("#6B7280")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// SideTable renders one side of the merged book as a fixed-height table so
// the two sides sit flush next to each other.
func SideTable(title string, levels []wsapi.WireLevel) string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %14s %14s", "EXCHANGE", "PRICE", "AMOUNT")))
	sb.WriteString("\n")

	for i := 0; i < maxRows; i++ {
		if i < len(levels) {
			lvl := levels[i]
			sb.WriteString(fmt.Sprintf("%-10s %14.8f %14.8f", lvl.Exchange, lvl.Price, lvl.Amount))
		} else {
			sb.WriteString(mutedStyle.Render(fmt.Sprintf("%-10s %14s %14s", "-", "-", "-")))
		}
		if i < maxRows-1 {
			sb.WriteString("\n")
		}
	}

	return boxStyle.Render(sb.String())
}
