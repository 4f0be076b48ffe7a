/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	instrument "github.com/allbin/go-instrument"
	"github.com/allbin/go-instrument/internal/tui/styles"
	"github.com/allbin/go-instrument/serial"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display information about a serial port and its instrument",
	Long: `Display detailed information about a serial port including USB metadata.

With --identify the port is opened, the instrument answers *IDN? and the
identity is matched against the instrument registry. Known models show their
category and recommended line framing.

Examples:
  instrument info /dev/ttyUSB0
  instrument info /dev/ttyUSB0 --identify`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath := args[0]

		info, err := serial.GetPortInfo(portPath)
		if err != nil {
			return fmt.Errorf("getting port info: %w", err)
		}

		fmt.Println(styles.TitleStyle.Render("Port Information: " + info.Path))
		fmt.Println()
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)

		if info.IsUSB {
			fmt.Println("\nUSB Device Information:")
			if info.VendorID != "" {
				fmt.Printf("  Vendor ID:    %s\n", info.VendorID)
			}
			if info.ProductID != "" {
				fmt.Printf("  Product ID:   %s\n", info.ProductID)
			}
			if info.SerialNumber != "" {
				fmt.Printf("  Serial:       %s\n", info.SerialNumber)
			}
			if info.Product != "" {
				fmt.Printf("  Product:      %s\n", info.Product)
			}
		}

		identify, _ := cmd.Flags().GetBool("identify")
		if !identify {
			return nil
		}
		return printIdentity(cmd, portPath)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolP("identify", "i", false, "Open the port and ask the instrument who it is")
}

func printIdentity(cmd *cobra.Command, portPath string) error {
	h, err := openInstrument(cmd, portPath)
	if err != nil {
		return err
	}
	defer h.Close()

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	fmt.Println("\nInstrument:")
	fmt.Printf("  Identity:     %s\n", styles.ValueStyle.Render(h.Identity()))

	if id, err := instrument.ParseIdentity(h.Identity()); err == nil {
		fmt.Printf("  Vendor:       %s\n", id.Vendor)
		fmt.Printf("  Model:        %s\n", id.Model)
		if id.Serial != "" && id.Serial != "0" {
			fmt.Printf("  Serial:       %s\n", id.Serial)
		}
		fmt.Printf("  Firmware:     %s\n", id.Firmware)
	} else {
		log.WithError(err).Debug("identity is not in vendor,model,serial,firmware form")
	}

	category := reg.Lookup(h.Identity())
	if category == instrument.CategoryUnknown {
		fmt.Printf("  Category:     %s\n", styles.WarningStyle.Render("unknown (not in registry)"))
		return nil
	}
	fmt.Printf("  Category:     %s\n", styles.SuccessStyle.Render(category.String()))

	if f, ok := reg.Framing(h.Identity()); ok {
		fmt.Printf("  Framing:      %s, terminator %q\n", f, f.Terminator)
	}
	return nil
}
