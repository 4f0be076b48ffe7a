package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Terminal is the scrolling transcript view.
type Terminal struct {
	viewport  viewport.Model
	formatter *Formatter
	entries   []EntryMsg
}

func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		viewport:  viewport.New(width, height),
		formatter: NewFormatter(),
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) Width() int {
	return t.viewport.Width
}

func (t *Terminal) Entries() []EntryMsg {
	return t.entries
}

func (t *Terminal) AddEntry(e EntryMsg) {
	t.entries = append(t.entries, e)
	t.refresh()
}

// refresh re-renders every entry and keeps the latest one in view.
func (t *Terminal) refresh() {
	t.viewport.SetContent(strings.Join(t.formatter.FormatAll(t.entries), "\n"))
	t.viewport.GotoBottom()
}

func (t *Terminal) Clear() {
	t.entries = nil
	t.viewport.SetContent("")
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
	t.refresh()
}

func (t *Terminal) ToggleTimestamps() {
	t.formatter.ToggleTimestamps()
	t.refresh()
}

func (t *Terminal) ScrollUp() {
	t.viewport.LineUp(1)
}

func (t *Terminal) ScrollDown() {
	t.viewport.LineDown(1)
}

func (t *Terminal) GotoTop() {
	t.viewport.GotoTop()
}

func (t *Terminal) GotoBottom() {
	t.viewport.GotoBottom()
}

func (t *Terminal) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Key messages are handled by the console so they don't scroll twice.
	switch msg.(type) {
	case tea.WindowSizeMsg:
		return t.viewport.Update(msg)
	default:
		return t.viewport, nil
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
