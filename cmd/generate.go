/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	instrument "github.com/allbin/go-instrument"
	"github.com/allbin/go-instrument/internal/tui/styles"
	"github.com/spf13/cobra"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate <port>",
	Short: "Output a waveform from a function generator",
	Long: `Set the function generator on a port to output a waveform in one
APPLy command.

Shapes: sin, squ, tri, ramp, nois, dc (long names such as square work too).

Example usage:
  instrument generate /dev/ttyUSB2 --shape sin --freq 1000 --amplitude 2
  instrument generate /dev/ttyUSB2 --shape square --freq 2.5e6 --amplitude 0.1 --offset -0.05`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shapeFlag, _ := cmd.Flags().GetString("shape")
		shape, err := instrument.ParseShape(shapeFlag)
		if err != nil {
			return err
		}
		freq, _ := cmd.Flags().GetFloat64("freq")
		amplitude, _ := cmd.Flags().GetFloat64("amplitude")
		offset, _ := cmd.Flags().GetFloat64("offset")

		h, err := openInstrument(cmd, args[0])
		if err != nil {
			return err
		}
		defer h.Close()

		if _, err := checkCategory(h, instrument.CategoryFunctionGenerator); err != nil {
			return err
		}

		gen := instrument.NewFunctionGenerator(h)
		if err := gen.ApplyContext(cmd.Context(), shape, freq, amplitude, offset); err != nil {
			return err
		}

		fmt.Printf("%s %s %s Hz, %s Vpp, offset %s V\n", styles.SuccessStyle.Render("✓"),
			styles.InfoStyle.Render(string(shape)),
			styles.ValueStyle.Render(fmt.Sprint(freq)),
			styles.ValueStyle.Render(fmt.Sprint(amplitude)),
			styles.ValueStyle.Render(fmt.Sprint(offset)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("shape", "s", "sin", "Waveform shape")
	generateCmd.Flags().Float64P("freq", "f", 1000, "Frequency in Hz")
	generateCmd.Flags().Float64P("amplitude", "a", 1, "Amplitude in volts peak-to-peak")
	generateCmd.Flags().Float64P("offset", "o", 0, "DC offset in volts")
}
