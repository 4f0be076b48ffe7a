/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"

	instrument "github.com/allbin/go-instrument"
	"github.com/allbin/go-instrument/internal/tui/styles"
	"github.com/spf13/cobra"
)

// supplyCmd represents the supply command
var supplyCmd = &cobra.Command{
	Use:   "supply <port>",
	Short: "Program a bench power supply output",
	Long: `Reset the power supply on a port and program one of its outputs.

The supply is reset first so the range, enable and select commands are sent
from a known state. --current sets a current limit (the output is driven to
20 V to keep it in the high range) and --voltage then sets the output voltage.
Magnitudes of 8 V and above switch the supply to its high range.

Example usage:
  instrument supply /dev/ttyUSB1 --output out1 --voltage 5
  instrument supply /dev/ttyUSB1 --output out2 --current 0.5 --voltage 12`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outFlag, _ := cmd.Flags().GetString("output")
		out, err := instrument.ParseOutput(outFlag)
		if err != nil {
			return err
		}

		setVoltage := cmd.Flags().Changed("voltage")
		setCurrent := cmd.Flags().Changed("current")
		if !setVoltage && !setCurrent {
			return errors.New("nothing to do: give --voltage and/or --current")
		}
		voltage, _ := cmd.Flags().GetFloat64("voltage")
		current, _ := cmd.Flags().GetFloat64("current")

		h, err := openInstrument(cmd, args[0])
		if err != nil {
			return err
		}
		defer h.Close()

		if _, err := checkCategory(h, instrument.CategoryPowerSupply); err != nil {
			return err
		}

		ctx := cmd.Context()
		psu, err := instrument.NewPowerSupplyContext(ctx, h)
		if err != nil {
			return err
		}

		if setCurrent {
			if err := psu.SetOutputCurrentContext(ctx, current, out); err != nil {
				return err
			}
			fmt.Printf("%s %s current limit %s A\n", styles.SuccessStyle.Render("✓"), out,
				styles.ValueStyle.Render(fmt.Sprint(current)))
		}
		if setVoltage {
			if err := psu.SetOutputVoltageContext(ctx, voltage, out); err != nil {
				return err
			}
			fmt.Printf("%s %s voltage %s V\n", styles.SuccessStyle.Render("✓"), out,
				styles.ValueStyle.Render(fmt.Sprint(voltage)))
		}

		state := psu.OutputState()
		fmt.Println(styles.MutedStyle.Render(fmt.Sprintf("selected %s, %s range, out1 on: %t, out2 on: %t",
			state.Selected, state.Range, state.Enabled[instrument.Out1], state.Enabled[instrument.Out2])))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(supplyCmd)

	supplyCmd.Flags().StringP("output", "o", "out1", "Output to program: out1 or out2")
	supplyCmd.Flags().Float64P("voltage", "v", 0, "Output voltage in volts")
	supplyCmd.Flags().Float64P("current", "c", 0, "Current limit in amps")
}
