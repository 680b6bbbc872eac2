package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/janch32/arduino-serial/discover"
	"github.com/janch32/arduino-serial/terminal"
	"github.com/janch32/arduino-serial/transport"
	"github.com/spf13/cobra"
)

var flagBaud int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Open a terminal on the board's serial port",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().IntVar(&flagBaud, "baud", 9600, "Baud rate")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	port := flagPort
	if port == "" {
		logger.Info().Msg("port not specified, looking for an Arduino board")
		dev, err := discover.FirstArduino()
		if err != nil {
			return err
		}
		port = dev.Port
	}

	conn, err := transport.Serial{}.Open(transport.Config{
		Name:         port,
		BaudRate:     flagBaud,
		ReadTimeout:  100 * time.Millisecond,
		WriteTimeout: time.Second,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info().Str("port", port).Int("baud", flagBaud).Msg("connected, end input to quit")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return terminal.Run(ctx, conn, os.Stdin, os.Stdout, logger)
}
