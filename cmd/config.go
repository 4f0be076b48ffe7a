/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strconv"

	instrument "github.com/allbin/go-instrument"
	"github.com/allbin/go-instrument/internal/metrics"
	"github.com/allbin/go-instrument/serial"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultDelay     = instrument.DefaultDelay
	defaultByteDelay = instrument.DefaultByteDelay
)

var (
	log      = logrus.New()
	observer instrument.Observer
)

func setupLogger() error {
	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)

	switch viper.GetString("log.format") {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return fmt.Errorf("unknown log format %q", viper.GetString("log.format"))
	}
	return nil
}

// startMetrics serves /metrics for as long as the command runs.
func startMetrics(cmd *cobra.Command) {
	addr := viper.GetString("metrics.addr")
	if addr == "" {
		return
	}
	c := metrics.New()
	observer = c
	go func() {
		if err := c.Serve(cmd.Context(), addr, log); err != nil {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
}

// unescapeTerminator turns a flag value such as `\r\n` into the bytes it
// names.
func unescapeTerminator(s string) (string, error) {
	t, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return "", fmt.Errorf("terminator %q: %w", s, err)
	}
	return t, nil
}

func serialOptions() ([]serial.Option, error) {
	parity, err := serial.ParseParity(viper.GetString("serial.parity"))
	if err != nil {
		return nil, err
	}
	return []serial.Option{
		serial.WithBaudRate(viper.GetInt("serial.baud")),
		serial.WithParity(parity),
		serial.WithStopBits(viper.GetInt("serial.stop-bits")),
		serial.WithDataBits(viper.GetInt("serial.data-bits")),
	}, nil
}

// handleOptions builds the instrument options from flags, config file and
// environment.
func handleOptions() ([]instrument.Option, error) {
	sopts, err := serialOptions()
	if err != nil {
		return nil, err
	}
	term, err := unescapeTerminator(viper.GetString("terminator"))
	if err != nil {
		return nil, err
	}

	opts := []instrument.Option{
		instrument.WithSerialOptions(sopts...),
		instrument.WithTerminator(term),
		instrument.WithDelay(viper.GetDuration("delay")),
		instrument.WithByteDelay(viper.GetDuration("byte-delay")),
		instrument.WithReadTimeout(viper.GetDuration("read-timeout")),
		instrument.WithLogger(log),
	}

	strict := viper.GetBool("strict")
	if viper.GetBool("diagnostics") || strict {
		opts = append(opts, instrument.WithDiagnostics())
	}
	if strict {
		opts = append(opts, instrument.WithStrict())
	}

	if viper.GetString("registry") != "" {
		reg, err := loadRegistry()
		if err != nil {
			return nil, err
		}
		opts = append(opts, instrument.WithRegistry(reg))
	}

	if model := viper.GetString("model"); model != "" {
		f, err := modelFraming(model)
		if err != nil {
			return nil, err
		}
		opts = append(opts, instrument.WithFraming(f))
	}

	if observer != nil {
		opts = append(opts, instrument.WithObserver(observer))
	}
	return opts, nil
}

// loadRegistry returns the built-in signatures, extended by the --registry
// file when one is configured.
func loadRegistry() (*instrument.Registry, error) {
	path := viper.GetString("registry")
	if path == "" {
		return instrument.DefaultRegistry(), nil
	}
	return instrument.LoadRegistry(path)
}

// modelFraming looks up the registered framing for an identity string. It
// overrides the framing and terminator flags.
func modelFraming(model string) (instrument.Framing, error) {
	reg, err := loadRegistry()
	if err != nil {
		return instrument.Framing{}, err
	}
	if reg.Lookup(model) == instrument.CategoryUnknown {
		return instrument.Framing{}, fmt.Errorf("model %q is not in the registry", model)
	}
	f, ok := reg.Framing(model)
	if !ok {
		return instrument.Framing{}, fmt.Errorf("model %q has no registered framing", model)
	}
	return f, nil
}

// checkCategory makes sure h can be driven as want. It reports whether the
// registry knows the instrument; unknown instruments are allowed with a
// warning, instruments registered under another category are not.
func checkCategory(h *instrument.Handle, want instrument.Category) (bool, error) {
	reg, err := loadRegistry()
	if err != nil {
		return false, err
	}

	switch c := reg.Lookup(h.Identity()); c {
	case want:
		return true, nil
	case instrument.CategoryUnknown:
		log.WithFields(logrus.Fields{
			"port":     h.Port(),
			"identity": h.Identity(),
		}).Warnf("unknown instrument, treating it as a %s", want)
		return false, nil
	default:
		return false, fmt.Errorf("%s: %q is a %s, not a %s", h.Port(), h.Identity(), c, want)
	}
}

// openInstrument opens port with the configured options.
func openInstrument(cmd *cobra.Command, port string) (*instrument.Handle, error) {
	opts, err := handleOptions()
	if err != nil {
		return nil, err
	}
	return instrument.OpenContext(cmd.Context(), port, opts...)
}
