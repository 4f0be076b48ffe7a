/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	instrument "github.com/allbin/go-instrument"
	"github.com/allbin/go-instrument/internal/tui/colors"
	"github.com/allbin/go-instrument/internal/tui/styles"
	"github.com/allbin/go-instrument/serial"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [port...]",
	Short: "Identify the instruments attached to serial ports",
	Long: `Open each port, ask the instrument for its identity with *IDN? and
print the answer. Without arguments every serial port on the system is tried.

Ports that cannot be opened, or where nothing answers, are reported and the
scan carries on. With --classify the identity is looked up in the registry
and the instrument category is shown next to it.

Example usage:
  instrument scan
  instrument scan /dev/ttyUSB0 /dev/ttyUSB1 --classify
  instrument scan --classify --table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports := args
		if len(ports) == 0 {
			var err error
			ports, err = serial.ListPorts()
			if err != nil {
				return fmt.Errorf("listing ports: %w", err)
			}
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}

		classify, _ := cmd.Flags().GetBool("classify")
		tableFormat, _ := cmd.Flags().GetBool("table")

		reg, err := loadRegistry()
		if err != nil {
			return err
		}

		results := make([]scanResult, 0, len(ports))
		for _, port := range ports {
			if cmd.Context().Err() != nil {
				break
			}
			r := scanPort(cmd, port, reg)
			results = append(results, r)
			if !tableFormat {
				printScanResult(r, classify)
			}
		}

		if tableFormat {
			fmt.Println(renderScanTable(results, classify))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolP("classify", "c", false, "Show the instrument category from the registry")
	scanCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

type scanResult struct {
	port     string
	identity string
	category instrument.Category
	err      error
}

func scanPort(cmd *cobra.Command, port string, reg *instrument.Registry) scanResult {
	r := scanResult{port: port}

	h, err := openInstrument(cmd, port)
	if err != nil {
		log.WithError(err).WithField("port", port).Info("scan: no instrument")
		r.err = err
		return r
	}
	defer h.Close()

	r.identity = h.Identity()
	r.category = reg.Lookup(r.identity)
	return r
}

func printScanResult(r scanResult, classify bool) {
	switch {
	case r.err != nil:
		fmt.Printf("%s %s: %v\n", styles.FailureStyle.Render("✗"), r.port, r.err)
	case r.identity == "":
		fmt.Printf("%s %s: %s\n", styles.WarningStyle.Render("○"), r.port, styles.MutedStyle.Render("no response"))
	case classify:
		fmt.Printf("%s %s: %s %s\n", styles.SuccessStyle.Render("●"), r.port,
			styles.InfoStyle.Render(r.category.String()), r.identity)
	default:
		fmt.Printf("%s %s: %s\n", styles.SuccessStyle.Render("●"), r.port, r.identity)
	}
}

const (
	columnKeyPort     = "port"
	columnKeyCategory = "category"
	columnKeyIdentity = "identity"
)

func renderScanTable(results []scanResult, classify bool) string {
	columns := []table.Column{
		table.NewColumn(columnKeyPort, "Port", 16),
	}
	if classify {
		columns = append(columns, table.NewColumn(columnKeyCategory, "Category", 20))
	}
	columns = append(columns, table.NewColumn(columnKeyIdentity, "Identity", 48))

	rows := make([]table.Row, 0, len(results))
	for _, r := range results {
		identity := r.identity
		category := r.category.String()
		switch {
		case r.err != nil:
			identity = styles.FailureStyle.Render(r.err.Error())
			category = "-"
		case identity == "":
			identity = styles.MutedStyle.Render("no response")
			category = "-"
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPort:     r.port,
			columnKeyCategory: category,
			columnKeyIdentity: identity,
		}))
	}

	return table.New(columns).
		WithRows(rows).
		BorderRounded().
		WithBaseStyle(lipgloss.NewStyle().
			BorderForeground(colors.Surface2).
			Foreground(colors.Text).
			Align(lipgloss.Left)).
		HeaderStyle(lipgloss.NewStyle().Foreground(colors.Mauve).Bold(true)).
		View()
}
