package bootloader

import (
	"time"

	"github.com/janch32/arduino-serial/reset"
	"github.com/janch32/arduino-serial/transport"
	"github.com/rs/zerolog"
)

// Conn - Port handling shared by the protocol implementations: opening
// through the reset hooks, raw send and receive, and closing.
type Conn struct {
	session *transport.Session
	hooks   reset.Hooks
	settle  time.Duration
	sleep   func(time.Duration)
	log     zerolog.Logger
}

// NewConn - Connection to the port described by cfg. settle is slept after
// the port is open and the post-open reset is done.
func NewConn(d transport.Dialer, cfg transport.Config, hooks reset.Hooks, settle time.Duration, log zerolog.Logger) *Conn {
	return &Conn{
		session: transport.NewSession(d, cfg, log),
		hooks:   hooks,
		settle:  settle,
		sleep:   time.Sleep,
		log:     log,
	}
}

// SetSleep - Replaces time.Sleep, mostly for tests
func (c *Conn) SetSleep(sleep func(time.Duration)) {
	c.sleep = sleep
}

func (c *Conn) Sleep(d time.Duration) {
	if d > 0 {
		c.sleep(d)
	}
}

func (c *Conn) Logger() zerolog.Logger {
	return c.log
}

// Port - Name of the port currently in use. It changes when a reset makes
// the board re-enumerate.
func (c *Conn) Port() string {
	return c.session.Config().Name
}

func (c *Conn) IsOpen() bool {
	return c.session.IsOpen()
}

func (c *Conn) applyReset(hook string, r reset.Strategy) error {
	if r == nil {
		return nil
	}

	c.log.Debug().Str("hook", hook).Stringer("reset", r).Msg("applying reset")
	s, err := r.Reset(c.session)
	if err != nil {
		return err
	}
	c.session = s
	return nil
}

// Open - Pre-open reset, open, post-open reset, settle
func (c *Conn) Open() error {
	if err := c.applyReset("pre-open", c.hooks.PreOpen); err != nil {
		return err
	}
	if err := c.session.Open(); err != nil {
		return err
	}
	if err := c.applyReset("post-open", c.hooks.PostOpen); err != nil {
		return err
	}
	// a post-open reset may hand back a session on a new port
	if err := c.session.Open(); err != nil {
		return err
	}

	c.Sleep(c.settle)
	return nil
}

// Close - Pre-close reset, drop DTR and RTS, close. Only the error of
// closing the port itself is returned, the rest is logged.
func (c *Conn) Close() error {
	if !c.session.IsOpen() {
		return nil
	}

	if err := c.applyReset("pre-close", c.hooks.PreClose); err != nil {
		c.log.Warn().Err(err).Msg("pre-close reset")
	}
	if err := c.session.SetDTR(false); err != nil {
		c.log.Debug().Err(err).Msg("drop DTR")
	}
	if err := c.session.SetRTS(false); err != nil {
		c.log.Debug().Err(err).Msg("drop RTS")
	}

	return c.session.Close()
}

func (c *Conn) Discard() error {
	return c.session.Discard()
}

func (c *Conn) Send(data []byte) error {
	return c.session.Write(data)
}

// Receive - Reads exactly n bytes
func (c *Conn) Receive(n int) ([]byte, error) {
	return c.session.ReadFull(n)
}

func (c *Conn) ReceiveByte() (byte, error) {
	return c.session.ReadByte()
}
