package main

import (
	"fmt"

	"github.com/janch32/arduino-serial/discover"
	"github.com/janch32/arduino-serial/profile"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial ports and the Arduino boards on them",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var flagListBoards bool

func init() {
	listCmd.Flags().BoolVar(&flagListBoards, "boards", false, "List supported board models instead")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if flagListBoards {
		for _, model := range profile.Models() {
			b, _ := profile.Lookup(model)
			fmt.Fprintf(out, "%-12s %-11s %-9s %d baud\n", b.Model, b.MCU.Name, b.Protocol, b.BaudRate)
		}
		return nil
	}

	devices, err := discover.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(out, "No serial ports found")
		return nil
	}

	for _, d := range devices {
		line := d.Port
		if d.USB {
			line += fmt.Sprintf("\t%s:%s", d.VID, d.PID)
			if d.Serial != "" {
				line += "\t" + d.Serial
			}
		}
		if d.Arduino {
			line += "\t(Arduino)"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
