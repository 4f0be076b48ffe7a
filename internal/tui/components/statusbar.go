package components

import (
	"fmt"

	"github.com/allbin/go-instrument/internal/tui/colors"
	"github.com/allbin/go-instrument/internal/tui/styles"
	"github.com/allbin/go-instrument/serial"
	"github.com/charmbracelet/lipgloss"
)

// ConnectionInfo is what the status bar shows about the open instrument.
type ConnectionInfo struct {
	Framing  serial.Config
	Identity string
	Category string
}

type StatusBar struct {
	portPath       string
	status         string
	err            error
	busy           bool
	width          int
	connectionInfo *ConnectionInfo
}

func NewStatusBar(portPath string) *StatusBar {
	return &StatusBar{
		portPath: portPath,
		status:   "Initializing...",
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetConnectionInfo(info *ConnectionInfo) {
	sb.connectionInfo = info
}

func (sb *StatusBar) SetIdentity(identity, category string) {
	if sb.connectionInfo == nil {
		sb.connectionInfo = &ConnectionInfo{Framing: serial.DefaultConfig()}
	}
	sb.connectionInfo.Identity = identity
	sb.connectionInfo.Category = category
}

func (sb *StatusBar) SetBusy(busy bool) {
	sb.busy = busy
}

func (sb *StatusBar) SetConnecting() {
	sb.status = "Connecting..."
	sb.err = nil
}

func (sb *StatusBar) SetConnected() {
	sb.status = "Connected"
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	if err != nil {
		sb.status = fmt.Sprintf("Connection failed: %v", err)
		sb.err = err
	} else {
		sb.status = "Disconnected"
		sb.err = nil
	}
}

// Status returns the connection status text and the error behind it, if any.
func (sb *StatusBar) Status() (string, error) {
	return sb.status, sb.err
}

func (sb *StatusBar) indicator(connected bool) string {
	var style lipgloss.Style
	var glyph string

	switch {
	case sb.err != nil:
		style, glyph = styles.GetStatusStyle(styles.StatusDisconnected), "✗"
	case connected && sb.busy:
		style, glyph = styles.GetStatusStyle(styles.StatusBusy), "◐"
	case connected:
		style, glyph = styles.GetStatusStyle(styles.StatusConnected), "●"
	case sb.status == "Connecting...":
		style, glyph = styles.GetStatusStyle(styles.StatusConnecting), "○"
	default:
		style, glyph = styles.GetStatusStyle(styles.StatusDisconnected), "○"
	}
	return style.Render(glyph)
}

// View renders the bottom bar: mode, port and state on the left, the
// instrument and line framing on the right.
func (sb *StatusBar) View(inputMode string, connected bool, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	modeStyle := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(colors.Blue).
		Bold(true).
		Padding(0, 1)
	if inputMode == "INSERT" {
		modeStyle = modeStyle.Background(colors.Green)
	}
	mode := modeStyle.Render(inputMode)

	port := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portPath)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	var left string
	if sb.err != nil {
		failure := lipgloss.NewStyle().
			Foreground(colors.Red).
			Padding(0, 1).
			Render(sb.status)
		left = lipgloss.JoinHorizontal(lipgloss.Left, mode, port, sb.indicator(connected), failure, divider)
	} else {
		left = lipgloss.JoinHorizontal(lipgloss.Left, mode, port, sb.indicator(connected), divider)
	}

	info := "⚡ scpi"
	if sb.connectionInfo != nil {
		info = "⚡ " + sb.connectionInfo.Framing.String()
		if sb.connectionInfo.Identity != "" {
			info = fmt.Sprintf("%s %s │ %s", sb.connectionInfo.Category, sb.connectionInfo.Identity, info)
		}
	}
	details := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(info)

	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	right := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(left) - lipgloss.Width(right)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, left, spacer, right))
}
