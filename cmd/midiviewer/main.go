package main

import (
	"fmt"
	"io"
	"os"

	"github.com/leandrodaf/midiviewer/internal/config"
	"github.com/leandrodaf/midiviewer/internal/logger"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
	"github.com/leandrodaf/midiviewer/sdk/midi"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCommand(&cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "midiviewer",
		Short:        "Show incoming MIDI messages from an input device",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd, cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Driver, "driver", cfg.Driver, fmt.Sprintf("MIDI backend, one of %v", midi.Drivers()))
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "diagnostic log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write diagnostic logs to this file instead of stderr")
	flags.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "unread messages kept per connection before dropping, 0 for no limit")

	root.Flags().StringVarP(&cfg.Device, "device", "d", cfg.Device, "input device to listen to; prompts when empty")
	root.Flags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "also append the message log to this file")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	root.Flags().StringSliceVar(&cfg.Commands, "only", cfg.Commands, "only show these commands, e.g. noteon,noteoff,controlchange")

	root.AddCommand(newListCommand(cfg))
	return root
}

// reportSettings prints the effective settings when debugging.
func reportSettings(out io.Writer, cfg *config.Config) error {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil || level != contracts.DebugLevel {
		return err
	}
	return config.Report(out, cfg)
}

// newInputDriver builds the driver and logger from the shared settings.
func newInputDriver(cfg *config.Config) (contracts.InputDriver, contracts.Logger, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	filter, err := config.ParseFilter(cfg.Commands)
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewStandardLogger()
	opts := []contracts.Option{
		contracts.WithLogger(log),
		contracts.WithLogLevel(level),
		contracts.WithLogFile(cfg.LogFile),
		contracts.WithDriver(cfg.Driver),
		contracts.WithBufferSize(cfg.BufferSize),
	}
	if filter != nil {
		opts = append(opts, contracts.WithMIDIEventFilter(*filter))
	}

	driver, err := midi.NewDriver(opts...)
	if err != nil {
		return nil, nil, err
	}
	return driver, log, nil
}
