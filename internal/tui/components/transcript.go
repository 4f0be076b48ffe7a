package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/go-instrument/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

// EntryKind says who produced a transcript line.
type EntryKind int

const (
	EntryCommand EntryKind = iota
	EntryResponse
	EntryDeviceError
	EntryError
	EntryInfo
)

// EntryMsg is one line of the console transcript.
type EntryMsg struct {
	Timestamp time.Time
	Kind      EntryKind
	Text      string
}

type DisplayMode struct {
	ShowHex        bool
	ShowTimestamps bool
}

// Formatter renders transcript entries.
type Formatter struct {
	mode DisplayMode
}

func NewFormatter() *Formatter {
	return &Formatter{mode: DisplayMode{ShowTimestamps: true}}
}

func (f *Formatter) GetDisplayMode() DisplayMode {
	return f.mode
}

func (f *Formatter) ToggleHex() {
	f.mode.ShowHex = !f.mode.ShowHex
}

func (f *Formatter) ToggleTimestamps() {
	f.mode.ShowTimestamps = !f.mode.ShowTimestamps
}

func indicator(kind EntryKind) string {
	var color lipgloss.Color
	var label string

	switch kind {
	case EntryCommand:
		color, label = colors.Peach, "↗ TX"
	case EntryResponse:
		color, label = colors.Sky, "↙ RX"
	case EntryDeviceError:
		color, label = colors.Yellow, "⚠ ERR?"
	case EntryError:
		color, label = colors.Red, "✗"
	default:
		color, label = colors.Mauve, "•"
	}

	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(label)
}

// printable replaces control characters so responses cannot move the cursor.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return '·'
		}
		return r
	}, s)
}

func (f *Formatter) Format(e EntryMsg) string {
	var parts []string

	if f.mode.ShowTimestamps {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(colors.Subtext0).
			Render(fmt.Sprintf("[%s]", e.Timestamp.Format("15:04:05.000"))))
	}
	parts = append(parts, indicator(e.Kind))

	text := printable(e.Text)
	if text == "" && e.Kind == EntryResponse {
		text = lipgloss.NewStyle().Foreground(colors.Overlay0).Render("(no response)")
	}
	parts = append(parts, text)

	if f.mode.ShowHex && e.Text != "" && (e.Kind == EntryCommand || e.Kind == EntryResponse) {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Render(fmt.Sprintf("[% X]", []byte(e.Text))))
	}

	return strings.Join(parts, " ")
}

func (f *Formatter) FormatAll(entries []EntryMsg) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = f.Format(e)
	}
	return out
}
