package main

import (
	"github.com/janch32/arduino-serial/driver"
	"github.com/spf13/cobra"
)

var (
	flagListener string
	flagForce    bool
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Make sure the board runs a current listener sketch",
	Long: `bootstrap asks the board for its listener protocol version and deploys
the listener image through the bootloader when the board does not answer or
runs an older listener.`,
	Example: `  arduino-serial bootstrap --board nano --listener listener-nano.hex`,
	Args:    cobra.NoArgs,
	RunE:    runBootstrap,
}

func init() {
	bootstrapCmd.Flags().StringVar(&flagListener, "listener", "", "Listener sketch image (Intel HEX)")
	bootstrapCmd.Flags().BoolVar(&flagForce, "force", false, "Deploy even when the board runs a current listener")
	bootstrapCmd.MarkFlagRequired("listener")
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	bar, progress, _ := newProgressBar()
	defer bar.Close()

	d, err := driver.Connect(flagBoard, flagPort,
		driver.WithLogger(logger),
		driver.WithAutoBootstrap(true),
		driver.WithForceRedeploy(flagForce),
		driver.WithListenerFile(flagListener),
		driver.WithProgress(progress),
	)
	if err != nil {
		return err
	}
	defer d.Close()

	logger.Info().Str("port", d.Port()).Int("version", driver.HostVersion()).Msg("listener ready")
	return nil
}
