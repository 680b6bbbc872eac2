// Package listener talks to the listener sketch running on the board. Every
// request is a sync, a command handshake, a checksummed packet and a framed
// response, and the whole exchange is retried as a unit.
package listener

import (
	"bytes"
	"time"

	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/transport"
	"github.com/rs/zerolog"
)

const (
	DefaultRetries      = 6
	DefaultReadTimeout  = 500 * time.Millisecond
	DefaultWriteTimeout = 200 * time.Millisecond
	DefaultBaudRate     = 115200

	maxSyncRetries = 3
	maxReadTries   = 4
)

// State - Where the channel is in a request exchange
type State int

const (
	Disconnected State = iota
	Syncing
	Handshaking
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Syncing:
		return "syncing"
	case Handshaking:
		return "handshaking"
	case Ready:
		return "ready"
	}
	return "unknown"
}

type options struct {
	retries      int
	baudRate     int
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          zerolog.Logger
}

// Option configures a Channel
type Option func(*options)

// WithRetries - Attempts made by Send before giving up
func WithRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.retries = n
		}
	}
}

func WithBaudRate(baud int) Option {
	return func(o *options) { o.baudRate = baud }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// Channel - Request/response channel to the listener over one serial port
type Channel struct {
	session *transport.Session
	retries int
	state   State
	log     zerolog.Logger
}

// New - Creates a closed channel on the named port
func New(d transport.Dialer, port string, opts ...Option) *Channel {
	o := options{
		retries:      DefaultRetries,
		baudRate:     DefaultBaudRate,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := transport.Config{
		Name:         port,
		BaudRate:     o.baudRate,
		ReadTimeout:  o.readTimeout,
		WriteTimeout: o.writeTimeout,
	}
	log := o.log.With().Str("component", "listener").Logger()

	return &Channel{
		session: transport.NewSession(d, cfg, log),
		retries: o.retries,
		log:     log,
	}
}

func (c *Channel) Open() error {
	return c.session.Open()
}

func (c *Channel) Close() error {
	c.state = Disconnected
	return c.session.Close()
}

func (c *Channel) Port() string {
	return c.session.Config().Name
}

func (c *Channel) State() State {
	return c.state
}

// Send - Sends req using the configured retry budget
func (c *Channel) Send(req Request) (Response, error) {
	return c.SendRetries(req, c.retries)
}

// SendRetries - Runs the whole exchange at most retries times and returns
// the first decoded response
func (c *Channel) SendRetries(req Request, retries int) (Response, error) {
	if retries < 1 {
		retries = 1
	}

	var last error
	for attempt := 1; attempt <= retries; attempt++ {
		resp, err := c.exchange(req)
		if err == nil {
			return resp, nil
		}

		last = err
		c.state = Disconnected
		c.log.Debug().Err(err).Int("attempt", attempt).Int("of", retries).Stringer("request", req).Msg("exchange failed")
	}

	kind := fault.KindOf(last)
	if kind == 0 {
		kind = fault.TransportTimeout
	}
	return nil, fault.Wrap(kind, last, "no response to %s after %d attempts", req, retries)
}

// GetSync - Writes the sync pattern and checks the reversed echo
func (c *Channel) GetSync() bool {
	if err := c.session.Write(SyncRequest); err != nil {
		c.log.Debug().Err(err).Msg("sync write")
		return false
	}

	resp, err := c.session.ReadRetry(len(SyncResponse), maxReadTries)
	if err != nil {
		c.log.Debug().Err(err).Msg("sync read")
		return false
	}
	return bytes.Equal(resp, SyncResponse)
}

func (c *Channel) sync() error {
	c.state = Syncing
	for try := 0; try <= maxSyncRetries; try++ {
		if c.GetSync() {
			return nil
		}
	}
	return fault.New(fault.SyncFailure, "listener on %s did not sync", c.Port())
}

func (c *Channel) handshake(req Request) error {
	c.state = Handshaking
	length := byte(len(req.Payload))

	if err := c.session.Write([]byte{StartOfCommand, req.Command, length}); err != nil {
		return err
	}

	echo, err := c.session.ReadRetry(3, maxReadTries)
	if err != nil {
		return err
	}
	if echo[0] != length || echo[1] != req.Command || echo[2] != StartOfCommand {
		return fault.New(fault.FramingMismatch, "command handshake echo % X", echo)
	}
	return nil
}

func (c *Channel) exchange(req Request) (Response, error) {
	if err := c.sync(); err != nil {
		return nil, err
	}
	if err := c.handshake(req); err != nil {
		return nil, err
	}

	if err := c.session.Write(req.Packet()); err != nil {
		return nil, err
	}
	if err := c.session.Write([]byte{AllBytesWritten}); err != nil {
		return nil, err
	}

	header, err := c.session.ReadRetry(2, maxReadTries)
	if err != nil {
		return nil, err
	}
	if header[0] != StartOfResponse {
		return nil, fault.New(fault.FramingMismatch, "expected start of response, got 0x%02X", header[0])
	}

	body, err := c.session.ReadRetry(int(header[1]), maxReadTries)
	if err != nil {
		return nil, err
	}

	resp, err := Decode(body)
	if err != nil {
		return nil, err
	}

	c.state = Ready
	return resp, nil
}
