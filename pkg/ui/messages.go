// Package ui provides the Bubble Tea dashboard for the summary stream.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/spreadget/business/stream/infra/wsapi"
)

// Program is the running Bubble Tea program, set by the entry point so the
// stream client can push messages into the UI.
var Program *tea.Program

// Send delivers a message to the running program, if any.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}

// SummaryMsg carries a freshly received merged summary.
type SummaryMsg struct {
	Summary wsapi.WireSummary
}

// ConnectingMsg is sent while the client dials the stream endpoint.
type ConnectingMsg struct {
	Attempt int
}

// ConnectedMsg is sent once the stream subscription is live.
type ConnectedMsg struct{}

// StreamEndedMsg is sent when the server closes the stream cleanly.
type StreamEndedMsg struct{}

// ErrorMsg is sent when the client gives up.
type ErrorMsg struct {
	Error error
}

// TickMsg drives periodic redraws.
type TickMsg struct{}
