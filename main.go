package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	flagPort    string
	flagBoard   string
	flagVerbose int

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "arduino-serial",
	Short: "Program Arduino boards and drive them over the listener protocol",
	Long: `arduino-serial flashes Intel HEX images through the Arduino bootloaders
(STK500v1, STK500v2, AVR109) and talks to the listener sketch that lets the
host read and drive the board's pins.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagPort, "port", "p", "", "Serial port (optional when only one port is present)")
	rootCmd.PersistentFlags().StringVarP(&flagBoard, "board", "b", "uno", "Board model")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "More output, repeat for protocol traces")
}

func newLogger(verbose int) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case verbose == 1:
		level = zerolog.DebugLevel
	case verbose >= 2:
		level = zerolog.TraceLevel
	}

	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("failed")
		os.Exit(1)
	}
}
