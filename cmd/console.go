/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	instrument "github.com/allbin/go-instrument"
	"github.com/allbin/go-instrument/internal/tui/components"
	"github.com/allbin/go-instrument/internal/tui/keys"
	"github.com/allbin/go-instrument/internal/tui/models"
	"github.com/allbin/go-instrument/internal/tui/styles"
	"github.com/allbin/go-instrument/serial"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console <port>",
	Short: "Interactive SCPI console",
	Long: `Open an instrument and type SCPI commands at it.

Every line is sent with the configured terminator and whatever the instrument
answers is shown below it. Lines without a reply show "(no response)".

Type "exit" to leave, or "err?" (ctrl+e in normal mode) to read one entry
from the instrument error queue. Warnings logged while the console runs, such
as device errors found by --diagnostics, appear in the transcript.

Example usage:
  instrument console /dev/ttyUSB0
  instrument console /dev/ttyUSB0 --diagnostics --baud 19200`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := handleOptions()
		if err != nil {
			return err
		}
		sopts, err := serialOptions()
		if err != nil {
			return err
		}
		framing := serial.DefaultConfig()
		for _, opt := range sopts {
			if err := opt(&framing); err != nil {
				return err
			}
		}
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		return runConsole(cmd.Context(), args[0], framing, reg, opts)
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// consoleExit leaves the console when typed as a command.
const consoleExit = "exit"

// consoleErrorQueue reads the error queue when typed as a command.
const consoleErrorQueue = "err?"

type queryResultMsg struct {
	command  string
	response string
	err      error
}

type consoleModel struct {
	*models.Session
	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.ConsoleKeys
	registry  *instrument.Registry
}

// transcriptHook forwards warnings to the console transcript. The console
// owns the screen, so logrus cannot write to stderr while it runs.
type transcriptHook struct {
	send func(tea.Msg)
}

func (h *transcriptHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *transcriptHook) Fire(e *logrus.Entry) error {
	kind := components.EntryError
	text := e.Message
	if resp, ok := e.Data["response"]; ok {
		kind = components.EntryDeviceError
		text = fmt.Sprintf("%v (after %v)", resp, e.Data["command"])
	} else if err, ok := e.Data[logrus.ErrorKey]; ok {
		text = fmt.Sprintf("%s: %v", e.Message, err)
	}
	h.send(components.EntryMsg{Timestamp: e.Time, Kind: kind, Text: text})
	return nil
}

func runConsole(ctx context.Context, portPath string, framing serial.Config, reg *instrument.Registry, opts []instrument.Option) error {
	m := consoleModel{
		Session:   models.NewSession(portPath),
		terminal:  components.NewTerminal(0, 0), // sized by the first WindowSizeMsg
		statusBar: components.NewStatusBar(portPath),
		input:     components.NewInput("Type a SCPI command and press Enter..."),
		help:      help.New(),
		keys:      keys.NewConsoleKeys(),
		registry:  reg,
	}
	m.statusBar.SetConnecting()
	m.statusBar.SetConnectionInfo(&components.ConnectionInfo{Framing: framing})

	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithContext(ctx))

	out := log.Out
	hooks := log.ReplaceHooks(make(logrus.LevelHooks))
	log.SetOutput(io.Discard)
	log.AddHook(&transcriptHook{send: p.Send})

	go func() {
		h, err := instrument.OpenContext(m.Context(), portPath, opts...)
		if err != nil {
			p.Send(models.ConnectionStatusMsg{Error: err})
			return
		}
		if !m.Attach(h) {
			// The console quit while the instrument was starting up.
			h.Close()
			return
		}
		p.Send(models.ConnectionStatusMsg{Handle: h})
	}()

	_, err := p.Run()

	log.SetOutput(out)
	log.ReplaceHooks(hooks)
	if cerr := m.Cleanup(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error closing %s: %v\n", portPath, cerr)
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *consoleModel) Init() tea.Cmd {
	return nil
}

// run executes one console line against the instrument off the UI goroutine.
// The command holds the session busy until it returns.
func (m *consoleModel) run(line string) tea.Cmd {
	h := m.Handle()
	ctx := m.Context()
	return func() tea.Msg {
		defer m.Done()
		var resp string
		var err error
		if strings.EqualFold(line, consoleErrorQueue) {
			resp, err = h.ErrorQueueContext(ctx)
		} else {
			resp, err = h.QueryContext(ctx, line)
		}
		return queryResultMsg{command: line, response: resp, err: err}
	}
}

func (m *consoleModel) submit(line string) tea.Cmd {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.EqualFold(line, consoleExit) {
		return tea.Quit
	}
	if !m.Begin() {
		return nil
	}

	m.statusBar.SetBusy(true)
	m.input.AddToHistory(line)
	m.input.SetValue("")
	m.terminal.AddEntry(components.EntryMsg{
		Timestamp: time.Now(),
		Kind:      components.EntryCommand,
		Text:      line,
	})
	return m.run(line)
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Input area is 3 lines including its border, the status bar 1.
		verticalMarginHeight := 4
		if m.help.ShowAll {
			verticalMarginHeight += len(m.keys.FullHelp()[0])
		}
		m.terminal.SetSize(msg.Width, msg.Height-verticalMarginHeight)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.SetReady(true)

	case models.ConnectionStatusMsg:
		if msg.Error != nil {
			m.SetError(msg.Error)
			m.statusBar.SetDisconnected(msg.Error)
			m.terminal.AddEntry(components.EntryMsg{
				Timestamp: time.Now(),
				Kind:      components.EntryError,
				Text:      msg.Error.Error(),
			})
			break
		}
		// Classifying a power supply resets it, so the console only looks
		// the identity up.
		category := m.registry.Lookup(msg.Handle.Identity())
		m.statusBar.SetConnected()
		m.statusBar.SetIdentity(msg.Handle.Identity(), category.String())
		m.terminal.AddEntry(components.EntryMsg{
			Timestamp: time.Now(),
			Kind:      components.EntryInfo,
			Text:      fmt.Sprintf("%s is a %s: %s", msg.Handle.Port(), category, msg.Handle.Identity()),
		})
		m.SetInputMode(models.InputModeInsert)
		m.input.Focus()

	case queryResultMsg:
		m.statusBar.SetBusy(false)
		if msg.err != nil {
			var derr *instrument.DeviceError
			if errors.As(msg.err, &derr) {
				// Strict mode still hands back the response.
				m.terminal.AddEntry(components.EntryMsg{Timestamp: time.Now(), Kind: components.EntryResponse, Text: msg.response})
				m.terminal.AddEntry(components.EntryMsg{Timestamp: time.Now(), Kind: components.EntryDeviceError, Text: derr.Response})
				break
			}
			m.terminal.AddEntry(components.EntryMsg{Timestamp: time.Now(), Kind: components.EntryError, Text: msg.err.Error()})
			break
		}
		kind := components.EntryResponse
		if strings.EqualFold(msg.command, consoleErrorQueue) && !instrument.IsNoError(msg.response) {
			kind = components.EntryDeviceError
		}
		m.terminal.AddEntry(components.EntryMsg{Timestamp: time.Now(), Kind: kind, Text: msg.response})

	case components.EntryMsg:
		if m.IsReady() {
			m.terminal.AddEntry(msg)
		}

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			switch {
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, nil
			case key.Matches(msg, m.keys.Enter):
				if m.IsBusy() {
					return m, nil
				}
				return m, m.submit(m.input.Value())
			case msg.Type == tea.KeyUp:
				m.input.NavigateHistoryUp()
				return m, nil
			case msg.Type == tea.KeyDown:
				m.input.NavigateHistoryDown()
				return m, nil
			case msg.Type == tea.KeyCtrlC:
				return m, tea.Quit
			}
		} else {
			switch {
			case key.Matches(msg, m.keys.Quit):
				return m, tea.Quit
			case key.Matches(msg, m.keys.InsertMode):
				m.SetInputMode(models.InputModeInsert)
				m.input.Focus()
				return m, nil
			case key.Matches(msg, m.keys.ErrorQueue):
				return m, m.submit(consoleErrorQueue)
			case key.Matches(msg, m.keys.Clear):
				m.terminal.Clear()
			case key.Matches(msg, m.keys.Help):
				m.help.ShowAll = !m.help.ShowAll
			case key.Matches(msg, m.keys.ToggleHex):
				m.terminal.ToggleHex()
			case key.Matches(msg, m.keys.ToggleTimestamps):
				m.terminal.ToggleTimestamps()
			case key.Matches(msg, m.keys.Up):
				m.terminal.ScrollUp()
			case key.Matches(msg, m.keys.Down):
				m.terminal.ScrollDown()
			case key.Matches(msg, m.keys.GotoTop):
				m.terminal.GotoTop()
			case key.Matches(msg, m.keys.GotoBottom):
				m.terminal.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd
	if m.IsInInsertMode() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	if _, ok := msg.(tea.WindowSizeMsg); ok {
		_, cmd = m.terminal.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *consoleModel) View() string {
	content := "Initializing..."
	if m.IsReady() {
		content = m.terminal.View()
	}

	input := m.input.ViewWithMode(m.IsInInsertMode(), m.IsBusy())
	statusBar := m.statusBar.View(m.InputMode().String(), m.IsConnected(), time.Now().Format("15:04:05"))

	sections := []string{
		styles.ContentBorderStyle.Render(content),
		input,
		statusBar,
	}
	if m.help.ShowAll {
		sections = append(sections, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
