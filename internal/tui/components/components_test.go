package components

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/allbin/go-instrument/serial"
)

func TestInputHistory(t *testing.T) {
	in := NewInput("")

	in.AddToHistory("*IDN?")
	in.AddToHistory("  ")
	in.AddToHistory(":SYST:ERR?")
	in.AddToHistory(":SYST:ERR?")

	if got := in.History(); len(got) != 2 {
		t.Fatalf("Expected 2 history entries, got %q", got)
	}

	in.SetValue("read?")
	in.NavigateHistoryUp()
	if in.Value() != ":SYST:ERR?" {
		t.Errorf("Expected latest command, got %q", in.Value())
	}
	in.NavigateHistoryUp()
	in.NavigateHistoryUp()
	if in.Value() != "*IDN?" {
		t.Errorf("Expected oldest command, got %q", in.Value())
	}

	in.NavigateHistoryDown()
	if in.Value() != ":SYST:ERR?" {
		t.Errorf("Expected latest command, got %q", in.Value())
	}
	in.NavigateHistoryDown()
	if in.Value() != "read?" {
		t.Errorf("Expected unsent input restored, got %q", in.Value())
	}
}

func TestInputHistoryLimit(t *testing.T) {
	in := NewInput("")
	for i := 0; i < maxHistory+10; i++ {
		in.AddToHistory(strings.Repeat("x", i+1))
	}
	h := in.History()
	if len(h) != maxHistory {
		t.Fatalf("Expected %d entries, got %d", maxHistory, len(h))
	}
	if len(h[0]) != 11 {
		t.Errorf("Expected oldest entries dropped, first is %q", h[0])
	}
}

func TestFormatterModes(t *testing.T) {
	f := NewFormatter()
	e := EntryMsg{
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 6e6, time.UTC),
		Kind:      EntryCommand,
		Text:      "*IDN?",
	}

	out := f.Format(e)
	if !strings.Contains(out, "03:04:05.006") {
		t.Errorf("Expected timestamp in %q", out)
	}
	if strings.Contains(out, "2A 49 44 4E 3F") {
		t.Errorf("Expected no hex by default in %q", out)
	}

	f.ToggleHex()
	f.ToggleTimestamps()
	out = f.Format(e)
	if !strings.Contains(out, "2A 49 44 4E 3F") {
		t.Errorf("Expected hex dump in %q", out)
	}
	if strings.Contains(out, "03:04:05") {
		t.Errorf("Expected no timestamp in %q", out)
	}

	mode := f.GetDisplayMode()
	if !mode.ShowHex || mode.ShowTimestamps {
		t.Errorf("DisplayMode = %+v, expected hex on and timestamps off", mode)
	}
}

func TestFormatterResponses(t *testing.T) {
	f := NewFormatter()

	out := f.Format(EntryMsg{Kind: EntryResponse})
	if !strings.Contains(out, "(no response)") {
		t.Errorf("Expected placeholder for empty response, got %q", out)
	}

	out = f.Format(EntryMsg{Kind: EntryResponse, Text: "A\x1b[2JB"})
	if strings.Contains(out, "\x1b[2J") {
		t.Errorf("Expected control characters replaced, got %q", out)
	}

	if got := len(f.FormatAll([]EntryMsg{{}, {}, {}})); got != 3 {
		t.Errorf("FormatAll returned %d lines, expected 3", got)
	}
}

func TestTerminalEntries(t *testing.T) {
	term := NewTerminal(80, 10)
	term.AddEntry(EntryMsg{Kind: EntryCommand, Text: "*IDN?"})
	term.AddEntry(EntryMsg{Kind: EntryResponse, Text: "HEWLETT-PACKARD,34401A,0,11-5-2"})

	if len(term.Entries()) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(term.Entries()))
	}
	if !strings.Contains(term.View(), "34401A") {
		t.Errorf("Expected response in view:\n%s", term.View())
	}

	term.Clear()
	if len(term.Entries()) != 0 {
		t.Errorf("Expected empty transcript after Clear, got %d entries", len(term.Entries()))
	}
}

func TestStatusBar(t *testing.T) {
	sb := NewStatusBar("/dev/ttyUSB0")
	sb.SetWidth(160)
	sb.SetConnectionInfo(&ConnectionInfo{Framing: serial.DefaultConfig()})

	out := sb.View("NORMAL", false, "12:00:00")
	for _, want := range []string{"NORMAL", "/dev/ttyUSB0", "9600 8N1", "12:00:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in status bar %q", want, out)
		}
	}

	sb.SetConnected()
	sb.SetIdentity("HEWLETT-PACKARD,34401A,0,11-5-2", "multimeter")
	out = sb.View("INSERT", true, "12:00:01")
	if !strings.Contains(out, "multimeter") || !strings.Contains(out, "34401A") {
		t.Errorf("Expected identity in status bar %q", out)
	}

	failure := errors.New("no such device")
	sb.SetDisconnected(failure)
	status, err := sb.Status()
	if !errors.Is(err, failure) || !strings.Contains(status, "no such device") {
		t.Errorf("Status() = %q, %v", status, err)
	}
}
