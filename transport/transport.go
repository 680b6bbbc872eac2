// Package transport owns the serial line used by the command channel and the
// bootloader programmers. A Session is bound to one port name, baud rate and
// timeout pair and is never shared between two users.
package transport

import (
	"io"
	"time"

	"github.com/albenik/go-serial/v2"
)

// Port - Open serial line. *serial.Port of go-serial satisfies it.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetDTR(level bool) error
	SetRTS(level bool) error
}

// Config - Parameters of a serial line
type Config struct {
	Name         string
	BaudRate     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Handshake asserts DTR and RTS right after the port is opened.
	Handshake bool
}

// Dialer opens ports and lists the ports currently present on the host.
type Dialer interface {
	Open(cfg Config) (Port, error)
	Ports() ([]string, error)
}

const defaultTimeout = time.Second

// Serial - Dialer backed by go-serial
type Serial struct{}

// Open - Opens the named port 8N1 with the configured timeouts
func (Serial) Open(cfg Config) (Port, error) {
	conn, err := serial.Open(
		cfg.Name,
		serial.WithBaudrate(cfg.BaudRate),
		serial.WithDataBits(8),
		serial.WithParity(serial.NoParity),
		serial.WithStopBits(serial.OneStopBit),
		serial.WithReadTimeout(millis(cfg.ReadTimeout)),
		serial.WithWriteTimeout(millis(cfg.WriteTimeout)),
	)
	if err != nil {
		return nil, err
	}

	if cfg.Handshake {
		err = conn.SetDTR(true)
		if err == nil {
			err = conn.SetRTS(true)
		}
		if err != nil {
			conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

// Ports - Names of all serial ports present on the host
func (Serial) Ports() ([]string, error) {
	return serial.GetPortsList()
}

func millis(d time.Duration) int {
	if d <= 0 {
		d = defaultTimeout
	}
	return int(d / time.Millisecond)
}
