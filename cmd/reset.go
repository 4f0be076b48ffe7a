/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/allbin/go-instrument/internal/tui/styles"
	"github.com/allbin/go-instrument/serial"
	"github.com/spf13/cobra"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset <port|--serial serial>",
	Short: "Reset an instrument to its power-on state",
	Long: `Send *RST to the instrument on a port, returning it to its power-on
settings, and hand it back to front panel control.

USB adapters may come back under a different ttyUSB index after being
unplugged. --serial finds the adapter by its USB serial number instead (see
"instrument list --table"). With --clear the error queue is drained after
the reset.

Examples:
  instrument reset /dev/ttyUSB0
  instrument reset --serial NC7ILXW1 --clear`,
	Args: func(cmd *cobra.Command, args []string) error {
		serialFlag, _ := cmd.Flags().GetString("serial")
		if serialFlag == "" && len(args) != 1 {
			return errors.New("requires either a port path argument or --serial flag")
		}
		if serialFlag != "" && len(args) > 0 {
			return errors.New("cannot specify both port path and --serial flag")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		serialFlag, _ := cmd.Flags().GetString("serial")
		clearQueue, _ := cmd.Flags().GetBool("clear")

		var portPath string
		if serialFlag != "" {
			var err error
			portPath, err = serial.FindPortBySerial(serialFlag)
			if err != nil {
				return err
			}
			fmt.Printf("Adapter %s is %s\n", serialFlag, portPath)
		} else {
			portPath = args[0]
		}

		h, err := openInstrument(cmd, portPath)
		if err != nil {
			return err
		}
		defer h.Close()

		if err := h.ResetContext(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("%s %s reset (%s)\n", styles.SuccessStyle.Render("✓"), h.Port(), h.Identity())

		if clearQueue {
			return drainErrors(cmd, h)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringP("serial", "s", "", "Find the port by USB adapter serial number")
	resetCmd.Flags().Bool("clear", false, "Drain the error queue after the reset")
}
