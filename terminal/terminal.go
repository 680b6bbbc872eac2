// Package terminal connects the console to a serial port: what the board
// prints goes to the output, lines typed on the input go to the board.
package terminal

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const bufferSize = 100

// Run - Relays between port and the console until in ends, ctx is done or
// the port fails. A read returning no data is a read timeout and is ignored.
// A console read blocked at that point is left behind.
func Run(ctx context.Context, port io.ReadWriter, in io.Reader, out io.Writer, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	writeErr := make(chan error, 1)
	go func() {
		readErr <- readSerial(ctx, port, out)
	}()
	go func() {
		writeErr <- writeSerial(ctx, port, in, log)
	}()

	select {
	case err := <-readErr:
		return err
	case err := <-writeErr:
		cancel()
		if rerr := <-readErr; err == nil {
			err = rerr
		}
		return err
	case <-ctx.Done():
		return <-readErr
	}
}

// Read what the board sends and print it
func readSerial(ctx context.Context, port io.Reader, out io.Writer) error {
	buffer := make([]byte, bufferSize)

	for ctx.Err() == nil {
		n, err := port.Read(buffer)
		if err != nil {
			return errors.Wrap(err, "serial read")
		}
		if n == 0 {
			continue
		}

		if _, err := out.Write(buffer[:n]); err != nil {
			return errors.Wrap(err, "console write")
		}
	}
	return nil
}

// Read the console and send it to the board
func writeSerial(ctx context.Context, port io.Writer, in io.Reader, log zerolog.Logger) error {
	buffer := make([]byte, bufferSize)
	reader := bufio.NewReader(in)

	for ctx.Err() == nil {
		n, err := reader.Read(buffer)
		if n > 0 {
			if _, werr := port.Write(buffer[:n]); werr != nil {
				return errors.Wrap(werr, "serial write")
			}
			log.Trace().Hex("bytes", buffer[:n]).Msg("sent")
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "console read")
		}
	}
	return nil
}
