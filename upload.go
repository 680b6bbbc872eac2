package main

import (
	"fmt"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/uploader"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const progressSteps = 1000

var uploadCmd = &cobra.Command{
	Use:   "upload <file.hex>",
	Short: "Flash an Intel HEX image through the board's bootloader",
	Example: `  arduino-serial upload --board uno --port /dev/ttyACM0 blink.hex
  arduino-serial upload -b leonardo sketch.hex`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

// newProgressBar - Bar driven by the 0..1 upload fraction. The description
// follows the lifecycle state.
func newProgressBar() (*progressbar.ProgressBar, bootloader.Progress, func(bootloader.State)) {
	bar := progressbar.NewOptions(progressSteps,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Connecting"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)

	progress := func(p float64) {
		bar.Set(int(p * progressSteps))
	}
	onState := func(s bootloader.State) {
		switch s {
		case bootloader.ProgrammingModeEnabled:
			bar.Describe("Programming")
		case bootloader.Programmed:
			bar.Describe("Verifying")
		case bootloader.Verified:
			bar.Describe("Done")
		}
	}
	return bar, progress, onState
}

func runUpload(cmd *cobra.Command, args []string) error {
	bar, progress, onState := newProgressBar()
	defer bar.Close()

	u, err := uploader.New(flagBoard, flagPort,
		uploader.WithLogger(logger),
		uploader.WithProgress(progress),
		uploader.WithStateHook(onState),
	)
	if err != nil {
		return err
	}

	logger.Info().Str("board", u.Board().Model).Str("file", args[0]).Msg("uploading")
	if err := u.UploadFile(args[0]); err != nil {
		return err
	}

	logger.Info().Msg("upload finished")
	return nil
}
