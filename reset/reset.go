// Package reset implements the maneuvers that coax a board into its
// bootloader: touching the port at 1200 baud, or driving DTR and RTS.
package reset

import (
	"context"
	"fmt"
	"time"

	"github.com/janch32/arduino-serial/discover"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/transport"
)

// Strategy - Reset maneuver. It may hand back a different session, for
// example when the board re-enumerates under a new port name.
type Strategy interface {
	Reset(s *transport.Session) (*transport.Session, error)
	String() string
}

// Hooks - Strategies applied before open, after open and before close.
// Any of them may be nil.
type Hooks struct {
	PreOpen  Strategy
	PostOpen Strategy
	PreClose Strategy
}

const (
	touchBaudRate          = 1200
	defaultDiscoverTimeout = 10 * time.Second
	defaultDiscoverPoll    = 100 * time.Millisecond
)

// Baud1200 - Opens the port at 1200 baud and closes it again, which makes
// boards with native USB jump to the bootloader under a new port name.
type Baud1200 struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (r *Baud1200) String() string {
	return "1200bps"
}

func (r *Baud1200) Reset(s *transport.Session) (*transport.Session, error) {
	log := s.Logger()
	cfg := s.Config()
	d := s.Dialer()

	timeout, interval := r.Timeout, r.Interval
	if timeout <= 0 {
		timeout = defaultDiscoverTimeout
	}
	if interval <= 0 {
		interval = defaultDiscoverPoll
	}

	log.Info().Str("port", cfg.Name).Msg("issuing forced 1200bps reset")

	before, err := d.Ports()
	if err != nil {
		return nil, fault.Wrap(fault.ConfigurationError, err, "unable to list serial ports")
	}

	err = s.Close()
	if err != nil {
		log.Warn().Err(err).Msg("closing port before 1200bps touch")
	}

	touch, err := d.Open(transport.Config{
		Name:         cfg.Name,
		BaudRate:     touchBaudRate,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Handshake:    true,
	})
	if err != nil {
		return nil, fault.Wrap(fault.ConfigurationError, err, "unable to open %s at 1200 baud", cfg.Name)
	}
	touch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	name, err := discover.WaitForNewPort(ctx, d, before, interval, func(elapsed time.Duration, found []string) {
		log.Debug().Dur("elapsed", elapsed).Strs("found", found).Msg("waiting for bootloader port")
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("port", name).Msg("bootloader port found")

	next := cfg
	next.Name = name
	next.Handshake = true
	return transport.NewSession(d, next, log), nil
}

// DTR - Sets DTR to a fixed level
type DTR struct {
	Value bool
}

func (r *DTR) String() string {
	return fmt.Sprintf("DTR;%t", r.Value)
}

func (r *DTR) Reset(s *transport.Session) (*transport.Session, error) {
	err := s.Open()
	if err == nil {
		err = s.SetDTR(r.Value)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DTRRTS - Drives DTR and RTS to the inverted level, waits Wait1, drives
// them back and waits Wait2
type DTRRTS struct {
	Wait1    time.Duration
	Wait2    time.Duration
	Inverted bool
	Sleep    func(time.Duration)
}

func (r *DTRRTS) String() string {
	return fmt.Sprintf("DTR-RTS;%d;%d;%t", r.Wait1.Milliseconds(), r.Wait2.Milliseconds(), r.Inverted)
}

func (r *DTRRTS) Reset(s *transport.Session) (*transport.Session, error) {
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	err := s.Open()
	if err == nil {
		err = setLines(s, r.Inverted)
	}
	if err != nil {
		return nil, err
	}

	sleep(r.Wait1)

	err = setLines(s, !r.Inverted)
	if err != nil {
		return nil, err
	}

	sleep(r.Wait2)
	return s, nil
}

func setLines(s *transport.Session, level bool) error {
	err := s.SetDTR(level)
	if err == nil {
		err = s.SetRTS(level)
	}
	return err
}
