/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "instrument",
	Short: "Drive RS-232 bench instruments with SCPI",
	Long: `Talk to laboratory instruments (multimeters, function generators and
power supplies) over RS-232 using SCPI text commands.

Instruments are identified with *IDN? and matched against a registry of known
models. Run without a command, every serial port is scanned and the
instruments found are listed. Settings can come from flags, a YAML config file or INSTRUMENT_*
environment variables, e.g. INSTRUMENT_SERIAL_BAUD=19200. --model picks the
framing and terminator registered for a known identity instead.

Example usage:
  instrument scan --classify
  instrument send /dev/ttyUSB0 "*IDN?" --query
  instrument measure /dev/ttyUSB0 volt --samples 5
  instrument supply /dev/ttyUSB1 --output out1 --voltage 5
  instrument console /dev/ttyUSB0
  instrument info /dev/ttyUSB0 --model "HEWLETT-PACKARD,34401A,0,11-5-2"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogger(); err != nil {
			return err
		}
		startMetrics(cmd)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanCmd.RunE(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.instrument.yaml)")

	pf.IntP("baud", "b", 9600, "Baud rate")
	pf.String("parity", "none", "Parity: none, odd, even, mark, space")
	pf.Int("stop-bits", 1, "Stop bits: 1 or 2")
	pf.Int("data-bits", 8, "Data bits: 5-8")
	pf.String("terminator", `\r\n`, "Line terminator appended to commands (escapes allowed)")
	pf.Duration("delay", defaultDelay, "Pause after each write and before each read")
	pf.Duration("byte-delay", defaultByteDelay, "Pause between bytes while a response arrives")
	pf.Duration("read-timeout", 0, "Give up on a whole response, *IDN? at open included, after this long (0 = never)")
	pf.String("model", "", "Use the registered framing of this *IDN? identity instead of the framing flags")
	pf.Bool("diagnostics", false, "Check the instrument error queue after every query")
	pf.Bool("strict", false, "Fail on instrument reported errors (implies --diagnostics)")
	pf.String("registry", "", "YAML file with extra instrument signatures")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	bindings := map[string]string{
		"serial.baud":      "baud",
		"serial.parity":    "parity",
		"serial.stop-bits": "stop-bits",
		"serial.data-bits": "data-bits",
		"terminator":       "terminator",
		"delay":            "delay",
		"byte-delay":       "byte-delay",
		"read-timeout":     "read-timeout",
		"diagnostics":      "diagnostics",
		"strict":           "strict",
		"registry":         "registry",
		"model":            "model",
		"log.level":        "log-level",
		"log.format":       "log-format",
		"metrics.addr":     "metrics-addr",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".instrument")
	}

	viper.SetEnvPrefix("INSTRUMENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		os.Exit(1)
	}
}
