/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	instrument "github.com/allbin/go-instrument"
	"github.com/allbin/go-instrument/internal/tui/styles"
	"github.com/spf13/cobra"
)

// maxErrorQueue bounds how many entries --errors reads from the error queue.
const maxErrorQueue = 32

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <port> [command]",
	Short: "Send SCPI commands to an instrument",
	Long: `Send one or more SCPI commands to the instrument on a port.

Commands can be provided as:
- Command line argument: instrument send /dev/ttyUSB0 "*RST"
- From stdin (pipe), one command per line: cat setup.scpi | instrument send /dev/ttyUSB0

Each command is written with the configured terminator. With --query the
instrument response is read and printed after every command. With --errors
the instrument error queue is drained once all commands are sent.

Example usage:
  instrument send /dev/ttyUSB0 "*IDN?" --query
  instrument send /dev/ttyUSB0 ":DISP:TEXT 'HELLO'"
  printf ':conf:volt:dc 10,0.001\nread?\n' | instrument send /dev/ttyUSB0 --query --errors`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath := args[0]

		var commands []string
		if len(args) == 2 {
			commands = []string{args[1]}
		} else {
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				return errors.New("no command given and nothing piped on stdin")
			}
			commands, err = readCommands(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
		}

		query, _ := cmd.Flags().GetBool("query")
		drain, _ := cmd.Flags().GetBool("errors")

		h, err := openInstrument(cmd, portPath)
		if err != nil {
			return err
		}
		defer h.Close()

		fmt.Printf("%s %s: %s\n", styles.InfoStyle.Render("⚡"), h.Port(), h.Identity())

		if err := sendCommands(cmd, h, commands, query); err != nil {
			return err
		}
		if drain {
			return drainErrors(cmd, h)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("query", "q", false, "Read and print the response to every command")
	sendCmd.Flags().BoolP("errors", "e", false, "Drain the instrument error queue afterwards")
}

// readCommands returns the non-blank lines of r. Lines starting with # are
// comments.
func readCommands(r io.Reader) ([]string, error) {
	var commands []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	return commands, scanner.Err()
}

func sendCommands(cmd *cobra.Command, h *instrument.Handle, commands []string, query bool) error {
	ctx := cmd.Context()
	for _, c := range commands {
		if !query {
			if err := h.WriteLineContext(ctx, c); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", styles.SuccessStyle.Render("↗"), c)
			continue
		}

		resp, err := h.QueryContext(ctx, c)
		var derr *instrument.DeviceError
		if err != nil && !errors.As(err, &derr) {
			return err
		}
		fmt.Printf("%s %s\n", styles.SuccessStyle.Render("↗"), c)
		if resp == "" {
			fmt.Printf("%s %s\n", styles.InfoStyle.Render("↙"), styles.MutedStyle.Render("(no response)"))
		} else {
			fmt.Printf("%s %s\n", styles.InfoStyle.Render("↙"), styles.ValueStyle.Render(resp))
		}
		if derr != nil {
			return derr
		}
	}
	return nil
}

// drainErrors prints error queue entries until the instrument reports none.
func drainErrors(cmd *cobra.Command, h *instrument.Handle) error {
	for i := 0; i < maxErrorQueue; i++ {
		resp, err := h.ErrorQueueContext(cmd.Context())
		if err != nil {
			return err
		}
		if instrument.IsNoError(resp) {
			if i == 0 {
				fmt.Printf("%s no errors\n", styles.SuccessStyle.Render("✓"))
			}
			return nil
		}
		fmt.Printf("%s %s\n", styles.WarningStyle.Render("⚠"), resp)
	}
	log.WithField("port", h.Port()).Warnf("error queue still not empty after %d reads", maxErrorQueue)
	return nil
}
