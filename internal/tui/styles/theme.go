package styles

import (
	"github.com/allbin/go-instrument/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Console layout
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	// Command line output
	SuccessStyle = lipgloss.NewStyle().
			Foreground(colors.Green).
			Bold(true)

	FailureStyle = lipgloss.NewStyle().
			Foreground(colors.Red).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(colors.Mauve).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(colors.Overlay0)

	ValueStyle = lipgloss.NewStyle().
			Foreground(colors.Text).
			Bold(true)
)

type StatusType int

const (
	StatusConnected StatusType = iota
	StatusDisconnected
	StatusConnecting
	StatusBusy
)

// GetStatusStyle colours the connection indicator.
func GetStatusStyle(status StatusType) lipgloss.Style {
	switch status {
	case StatusConnected:
		return lipgloss.NewStyle().Foreground(colors.Green)
	case StatusConnecting:
		return lipgloss.NewStyle().Foreground(colors.Yellow)
	case StatusBusy:
		return lipgloss.NewStyle().Foreground(colors.Blue)
	default:
		return lipgloss.NewStyle().Foreground(colors.Red)
	}
}
