// ABOUTME: Bubbletea model for the receiver TUI
// ABOUTME: Shows playback state, telemetry and volume, and handles keys
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/pcmlink/pkg/pcmlink"
)

var (
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(9)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model represents the TUI state
type Model struct {
	info Info

	// Playback
	state  pcmlink.PlaybackState
	volume int
	muted  bool

	// Stats
	report    pcmlink.Report
	hasReport bool

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	volumeCtrl *VolumeControl
}

// Info describes the session shown in the header
type Info struct {
	Name   string
	Listen string
	Format string
	Volume int
}

// ReportMsg delivers a telemetry report
type ReportMsg pcmlink.Report

// StateMsg delivers a playback state change
type StateMsg pcmlink.PlaybackState

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case ReportMsg:
		m.report = pcmlink.Report(msg)
		m.hasReport = true
	case StateMsg:
		m.state = pcmlink.PlaybackState(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	lines := []string{
		titleStyle.Render(fmt.Sprintf("pcmlink receiver: %s", m.info.Name)),
		m.row("Listen", m.info.Listen),
		m.row("Format", m.info.Format),
		m.row("State", stateStyle(m.state).Render(m.state.String())),
		"",
		m.renderControls(),
		m.renderStats(),
	}

	if m.showDebug {
		lines = append(lines, "", m.renderDebug())
	}

	lines = append(lines, "", helpStyle.Render("↑/↓:Volume  m:Mute  d:Debug  q:Quit"))

	return boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m Model) row(label, value string) string {
	return labelStyle.Render(label+":") + value
}

// renderControls renders volume and buffer status
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	volume := m.row("Volume", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon))

	capacity := m.report.Capacity
	if capacity == 0 {
		capacity = 1
	}
	buffer := m.row("Buffer", fmt.Sprintf("[%s] %d/%d frames",
		renderBar(m.report.Occupancy, capacity, 10), m.report.Occupancy, m.report.Capacity))

	return volume + "\n" + buffer
}

// renderStats renders receive statistics
func (m Model) renderStats() string {
	if !m.hasReport {
		return m.row("Stats", "waiting for first report")
	}

	loss := lossStyle(m.report.LossRate).Render(fmt.Sprintf("%.2f%%", m.report.LossRate*100))

	return m.row("Stats", fmt.Sprintf("RX: %d  Played: %d  Dropped: %d", m.report.Received, m.report.Played, m.report.Dropped)) + "\n" +
		m.row("Loss", fmt.Sprintf("%s  Latency: %.1fms", loss, m.report.MeanLatencyMs))
}

// renderDebug renders the loss breakdown
func (m Model) renderDebug() string {
	return fmt.Sprintf("DEBUG:\n  Network loss: %d\n  Overflow drops: %d\n  Last sequence: %d\n  Write errors: %d",
		m.report.NetworkLoss, m.report.OverflowDrops, m.report.LastSequence, m.report.WriteErrors)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(m.volume+5, 100)
		m.sendVolume()
	case "down":
		m.volume = max(m.volume-5, 0)
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// sendVolume reports the current volume without blocking the UI
func (m Model) sendVolume() {
	if m.volumeCtrl == nil {
		return
	}
	select {
	case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

func stateStyle(state pcmlink.PlaybackState) lipgloss.Style {
	switch state {
	case pcmlink.StatePlaying:
		return goodStyle
	case pcmlink.StateWaitingForPrimed, pcmlink.StateDraining:
		return warnStyle
	default:
		return badStyle
	}
}

func lossStyle(rate float64) lipgloss.Style {
	switch {
	case rate < 0.01:
		return goodStyle
	case rate < 0.05:
		return warnStyle
	default:
		return badStyle
	}
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
