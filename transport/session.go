package transport

import (
	"github.com/janch32/arduino-serial/fault"
	"github.com/rs/zerolog"
)

// Session - PortSession: a port name, baud rate and timeout pair plus the
// port handle once opened.
type Session struct {
	cfg    Config
	dialer Dialer
	port   Port
	base   zerolog.Logger
	log    zerolog.Logger
}

// NewSession - Creates an unopened session
func NewSession(d Dialer, cfg Config, log zerolog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		dialer: d,
		base:   log,
		log:    log.With().Str("port", cfg.Name).Logger(),
	}
}

func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) Dialer() Dialer {
	return s.dialer
}

// Logger - Logger the session was created with
func (s *Session) Logger() zerolog.Logger {
	return s.base
}

func (s *Session) IsOpen() bool {
	return s.port != nil
}

// Open - Opens the port unless it is already open
func (s *Session) Open() error {
	if s.port != nil {
		return nil
	}

	port, err := s.dialer.Open(s.cfg)
	if err != nil {
		return fault.Wrap(fault.ConfigurationError, err, "unable to open serial port %s", s.cfg.Name)
	}

	s.port = port
	s.log.Debug().Int("baud", s.cfg.BaudRate).Msg("serial port opened")
	return nil
}

// Close - Closes the port. Closing a closed session is a no-op.
func (s *Session) Close() error {
	if s.port == nil {
		return nil
	}

	err := s.port.Close()
	s.port = nil
	s.log.Debug().Msg("serial port closed")
	return err
}

func (s *Session) SetDTR(level bool) error {
	if s.port == nil {
		return errNotOpen(s.cfg.Name)
	}
	return s.port.SetDTR(level)
}

func (s *Session) SetRTS(level bool) error {
	if s.port == nil {
		return errNotOpen(s.cfg.Name)
	}
	return s.port.SetRTS(level)
}

// Discard - Drops everything waiting in the input buffer
func (s *Session) Discard() error {
	if s.port == nil {
		return errNotOpen(s.cfg.Name)
	}
	return s.port.ResetInputBuffer()
}

// Write - Writes all of data or fails with TransportTimeout
func (s *Session) Write(data []byte) error {
	if s.port == nil {
		return errNotOpen(s.cfg.Name)
	}

	s.log.Trace().Hex("bytes", data).Msg("send")

	n, err := s.port.Write(data)
	if err != nil {
		return fault.Wrap(fault.TransportTimeout, err, "write %d bytes", len(data))
	}
	if n != len(data) {
		return fault.New(fault.TransportTimeout, "short write, %d of %d bytes", n, len(data))
	}
	return nil
}

// ReadRetry - Reads exactly length bytes issuing at most tries reads.
// A read that times out counts as one try.
func (s *Session) ReadRetry(length int, tries int) ([]byte, error) {
	if s.port == nil {
		return nil, errNotOpen(s.cfg.Name)
	}

	buff := make([]byte, length)
	received := 0

	for attempt := 0; received < length && attempt < tries; attempt++ {
		n, err := s.port.Read(buff[received:])
		if err != nil {
			return nil, fault.Wrap(fault.TransportTimeout, err, "read %d bytes", length)
		}
		received += n
	}

	if received < length {
		return nil, fault.New(fault.TransportTimeout, "received %d of %d bytes", received, length)
	}

	s.log.Trace().Hex("bytes", buff).Msg("recv")
	return buff, nil
}

// ReadFull - Reads exactly length bytes, failing on the first read that
// times out without data.
func (s *Session) ReadFull(length int) ([]byte, error) {
	if s.port == nil {
		return nil, errNotOpen(s.cfg.Name)
	}

	buff := make([]byte, length)
	received := 0

	for received < length {
		n, err := s.port.Read(buff[received:])
		if err != nil {
			return nil, fault.Wrap(fault.TransportTimeout, err, "read %d bytes", length)
		}
		if n == 0 {
			return nil, fault.New(fault.TransportTimeout, "received %d of %d bytes", received, length)
		}
		received += n
	}

	s.log.Trace().Hex("bytes", buff).Msg("recv")
	return buff, nil
}

// ReadByte - Reads one byte
func (s *Session) ReadByte() (byte, error) {
	b, err := s.ReadFull(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func errNotOpen(name string) error {
	return fault.New(fault.ConfigurationError, "serial port %s is not open", name)
}
