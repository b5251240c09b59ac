package main

import (
	"encoding/json"
	"fmt"

	"github.com/leandrodaf/midiviewer/internal/config"
	"github.com/spf13/cobra"
)

func newListCommand(cfg *config.Config) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available MIDI input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			driver, _, err := newInputDriver(cfg)
			if err != nil {
				return err
			}
			defer driver.Close()

			devices, err := driver.ListInputs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}
			if len(devices) == 0 {
				fmt.Fprintln(out, "No MIDI input devices found.")
				return nil
			}
			for i, d := range devices {
				if d.Manufacturer != "" {
					fmt.Fprintf(out, "%d: %s (%s)\n", i, d.Name, d.Manufacturer)
					continue
				}
				fmt.Fprintf(out, "%d: %s\n", i, d.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the list as JSON")
	return cmd
}
