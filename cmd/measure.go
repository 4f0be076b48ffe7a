/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	instrument "github.com/allbin/go-instrument"
	"github.com/allbin/go-instrument/internal/publish"
	"github.com/allbin/go-instrument/internal/tui/styles"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// measureCmd represents the measure command
var measureCmd = &cobra.Command{
	Use:   "measure <port> <volt|curr>",
	Short: "Take DC voltage or current readings with a multimeter",
	Long: `Configure the multimeter on a port for DC voltage or current, trigger a
reading and print the values.

Range and resolution accept a number or one of the keywords DEF, MIN and
MAX. --samples takes several readings per trigger; --count repeats the
measurement (0 runs until interrupted) with --interval between rounds.

Readings can be appended to a CSV file with --output, and published to Redis
with --publish. Published readings go to the --redis-channel pub/sub channel
and to a per-port history list, e.g. instrument:ttyUSB0:readings.

Example usage:
  instrument measure /dev/ttyUSB0 volt
  instrument measure /dev/ttyUSB0 volt --range 10 --resolution 0.001 --samples 5
  instrument measure /dev/ttyUSB0 curr --count 0 --interval 10s --output current.csv
  instrument measure /dev/ttyUSB0 volt --count 0 --publish --redis-addr localhost:6379`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath, quantity := args[0], args[1]
		unit, ok := quantityUnits[quantity]
		if !ok {
			return fmt.Errorf("unknown quantity %q, expected volt or curr", quantity)
		}

		rangeFlag, _ := cmd.Flags().GetString("range")
		resFlag, _ := cmd.Flags().GetString("resolution")
		samples, _ := cmd.Flags().GetInt("samples")
		count, _ := cmd.Flags().GetInt("count")
		interval, _ := cmd.Flags().GetDuration("interval")
		outputPath, _ := cmd.Flags().GetString("output")
		publishFlag, _ := cmd.Flags().GetBool("publish")

		rng, err := instrument.ParseSetting(rangeFlag)
		if err != nil {
			return fmt.Errorf("range: %w", err)
		}
		res, err := instrument.ParseSetting(resFlag)
		if err != nil {
			return fmt.Errorf("resolution: %w", err)
		}
		if samples < 1 {
			return fmt.Errorf("%w: %d", instrument.ErrInvalidSampleCount, samples)
		}

		ctx := cmd.Context()

		var sinks []readingSink
		if outputPath != "" {
			file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("opening output file: %w", err)
			}
			defer file.Close()
			w := csv.NewWriter(file)
			defer w.Flush()
			sinks = append(sinks, csvSink(w))
		}
		if publishFlag {
			pub, err := publish.New(ctx, publish.Config{
				Addr:     viper.GetString("redis.addr"),
				Password: viper.GetString("redis.password"),
				DB:       viper.GetInt("redis.db"),
				Channel:  viper.GetString("redis.channel"),
			}, log)
			if err != nil {
				return err
			}
			defer pub.Close()
			sinks = append(sinks, func(r publish.Reading) error {
				return pub.Publish(ctx, r)
			})
		}

		h, err := openInstrument(cmd, portPath)
		if err != nil {
			return err
		}
		defer h.Close()

		dmm, err := asMultimeter(cmd, h)
		if err != nil {
			return err
		}

		for round := 0; count == 0 || round < count; round++ {
			if round > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}

			vals, err := dmm.MeasureContext(ctx, quantity, rng, res, samples)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			now := time.Now()
			for _, v := range vals {
				r := publish.Reading{
					Port:      h.Port(),
					Identity:  h.Identity(),
					Quantity:  quantity,
					Unit:      unit,
					Value:     v,
					Timestamp: now,
				}
				fmt.Printf("%s %s %s\n",
					styles.MutedStyle.Render(now.Format("15:04:05.000")),
					styles.ValueStyle.Render(strconv.FormatFloat(v, 'g', -1, 64)),
					unit)
				for _, sink := range sinks {
					if err := sink(r); err != nil {
						return err
					}
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(measureCmd)

	measureCmd.Flags().String("range", "DEF", "Measurement range: a number, DEF, MIN or MAX")
	measureCmd.Flags().String("resolution", "DEF", "Measurement resolution: a number, DEF, MIN or MAX")
	measureCmd.Flags().IntP("samples", "n", 1, "Readings per trigger")
	measureCmd.Flags().IntP("count", "c", 1, "Number of measurements, 0 to run until interrupted")
	measureCmd.Flags().DurationP("interval", "i", time.Second, "Pause between measurements")
	measureCmd.Flags().StringP("output", "o", "", "Append readings to this CSV file")
	measureCmd.Flags().Bool("publish", false, "Publish readings to Redis")
	measureCmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	measureCmd.Flags().String("redis-channel", publish.DefaultChannel, "Redis pub/sub channel")

	for key, flag := range map[string]string{
		"redis.addr":    "redis-addr",
		"redis.channel": "redis-channel",
	} {
		if err := viper.BindPFlag(key, measureCmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

var quantityUnits = map[string]string{
	"volt": "V",
	"curr": "A",
}

type readingSink func(publish.Reading) error

// csvSink writes one row per reading: timestamp, port, quantity, value, unit.
func csvSink(w *csv.Writer) readingSink {
	return func(r publish.Reading) error {
		err := w.Write([]string{
			r.Timestamp.Format(time.RFC3339Nano),
			r.Port,
			r.Quantity,
			strconv.FormatFloat(r.Value, 'g', -1, 64),
			r.Unit,
		})
		if err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		w.Flush()
		return w.Error()
	}
}

// asMultimeter returns the multimeter view of h.
func asMultimeter(cmd *cobra.Command, h *instrument.Handle) (*instrument.Multimeter, error) {
	known, err := checkCategory(h, instrument.CategoryMultimeter)
	if err != nil {
		return nil, err
	}
	if !known {
		return instrument.NewMultimeter(h), nil
	}

	inst, err := h.ClassifyContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	if dmm, ok := inst.(*instrument.Multimeter); ok {
		return dmm, nil
	}
	return nil, fmt.Errorf("%s: %q did not classify as a multimeter", h.Port(), h.Identity())
}
