package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/janch32/arduino-serial/driver"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/listener"
	"github.com/spf13/cobra"
)

// requestBuilder - Builds a listener request from command line arguments
type requestBuilder struct {
	usage string
	args  int
	build func(v []uint64) listener.Request
}

var requestBuilders = map[string]requestBuilder{
	"handshake": {"", 0, func(v []uint64) listener.Request {
		return listener.HandshakeRequest()
	}},
	"digital-read": {"<pin>", 1, func(v []uint64) listener.Request {
		return listener.DigitalReadRequest(byte(v[0]))
	}},
	"digital-write": {"<pin> <0|1>", 2, func(v []uint64) listener.Request {
		return listener.DigitalWriteRequest(byte(v[0]), listener.DigitalValue(v[1]))
	}},
	"pin-mode": {"<pin> <0 input|1 output|2 pullup>", 2, func(v []uint64) listener.Request {
		return listener.PinModeRequest(byte(v[0]), listener.PinMode(v[1]))
	}},
	"analog-read": {"<pin>", 1, func(v []uint64) listener.Request {
		return listener.AnalogReadRequest(byte(v[0]))
	}},
	"analog-write": {"<pin> <0-255>", 2, func(v []uint64) listener.Request {
		return listener.AnalogWriteRequest(byte(v[0]), byte(v[1]))
	}},
	"tone": {"<pin> <hz> <ms>", 3, func(v []uint64) listener.Request {
		return listener.ToneRequest(byte(v[0]), uint16(v[1]), uint32(v[2]))
	}},
	"no-tone": {"<pin>", 1, func(v []uint64) listener.Request {
		return listener.NoToneRequest(byte(v[0]))
	}},
	"analog-reference": {"<type>", 1, func(v []uint64) listener.Request {
		return listener.AnalogReferenceRequest(listener.AnalogReferenceType(v[0]))
	}},
	"shift-out": {"<data pin> <clock pin> <0 lsb|1 msb> <value>", 4, func(v []uint64) listener.Request {
		return listener.ShiftOutRequest(byte(v[0]), byte(v[1]), listener.BitOrder(v[2]), byte(v[3]))
	}},
	"shift-in": {"<data pin> <clock pin> <0 lsb|1 msb>", 3, func(v []uint64) listener.Request {
		return listener.ShiftInRequest(byte(v[0]), byte(v[1]), listener.BitOrder(v[2]))
	}},
}

func requestUsage() string {
	names := make([]string, 0, len(requestBuilders))
	for name := range requestBuilders {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "  %s %s\n", name, requestBuilders[name].usage)
	}
	return sb.String()
}

// parseRequest - "analog-read 3" style arguments to a request
func parseRequest(args []string) (listener.Request, error) {
	b, ok := requestBuilders[strings.ToLower(args[0])]
	if !ok {
		return listener.Request{}, fault.New(fault.ConfigurationError, "unknown request %q", args[0])
	}
	if len(args)-1 != b.args {
		return listener.Request{}, fault.New(fault.ConfigurationError, "%s takes %d arguments: %s", args[0], b.args, b.usage)
	}

	values := make([]uint64, b.args)
	for i, a := range args[1:] {
		v, err := strconv.ParseUint(a, 0, 32)
		if err != nil {
			return listener.Request{}, fault.Wrap(fault.ConfigurationError, err, "argument %d of %s", i+1, args[0])
		}
		values[i] = v
	}
	return b.build(values), nil
}

func describe(resp listener.Response) string {
	switch r := resp.(type) {
	case *listener.HandshakeResponse:
		return fmt.Sprintf("listener %d.%d", r.Major, r.Minor)
	case *listener.DigitalReadResponse:
		return fmt.Sprintf("pin %d = %d", r.Pin, r.Value)
	case *listener.AnalogReadResponse:
		return fmt.Sprintf("pin %d = %d", r.Pin, r.Value)
	case *listener.ShiftInResponse:
		return fmt.Sprintf("shifted in 0x%02X", r.Incoming)
	case *listener.ErrorResponse:
		return fmt.Sprintf("error % X", []byte{r.Byte1, r.Byte2, r.Byte3})
	}
	return fmt.Sprintf("ok (0x%02X)", resp.Ack())
}

var sendCmd = &cobra.Command{
	Use:   "send <request> [args...]",
	Short: "Send one request to the listener sketch",
	Long:  "send sends one request to the listener and prints the answer. Requests:\n" + requestUsage(),
	Example: `  arduino-serial send pin-mode 13 1
  arduino-serial send digital-write 13 1
  arduino-serial send analog-read 0`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	req, err := parseRequest(args)
	if err != nil {
		return err
	}

	d, err := driver.Connect(flagBoard, flagPort, driver.WithLogger(logger))
	if err != nil {
		return err
	}
	defer d.Close()

	resp, err := d.Send(req)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), describe(resp))
	return nil
}
