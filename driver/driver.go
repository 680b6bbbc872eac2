// Package driver drives a board running the listener sketch. Connecting
// first makes sure the board runs a listener speaking the host protocol
// version and deploys one through the bootloader when it does not.
package driver

import (
	"time"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/discover"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/listener"
	"github.com/janch32/arduino-serial/memory"
	"github.com/janch32/arduino-serial/profile"
	"github.com/janch32/arduino-serial/transport"
	"github.com/janch32/arduino-serial/uploader"
	"github.com/rs/zerolog"
)

// Protocol version spoken by this host
const (
	HostMajor = 1
	HostMinor = 2

	BaudRate = 115200
)

// HostVersion - major*10 + minor
func HostVersion() int {
	return HostMajor*10 + HostMinor
}

// Outcome - Result of probing the board with a handshake
type Outcome int

const (
	NoResponse Outcome = iota
	ProtocolOlderThanHost
	ProtocolCurrentOrNewer
)

func (o Outcome) String() string {
	switch o {
	case NoResponse:
		return "no response"
	case ProtocolOlderThanHost:
		return "protocol older than host"
	case ProtocolCurrentOrNewer:
		return "protocol current or newer"
	}
	return "unknown"
}

// Classify - Compares the handshake answer with the host version
func Classify(resp *listener.HandshakeResponse) Outcome {
	if resp == nil {
		return NoResponse
	}
	if resp.Version() < HostVersion() {
		return ProtocolOlderThanHost
	}
	return ProtocolCurrentOrNewer
}

type Driver struct {
	board profile.Board
	port  string
	ch    *listener.Channel
	opts  options
	log   zerolog.Logger
}

// Connect - Connects to the listener on the board. An empty port selects
// the only serial port present.
func Connect(model, port string, opts ...Option) (*Driver, error) {
	o := options{
		dialer:  transport.Serial{},
		log:     zerolog.Nop(),
		retries: listener.DefaultRetries,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}

	board, err := profile.Lookup(model)
	if err != nil {
		return nil, err
	}
	name, err := discover.Resolve(o.dialer, port)
	if err != nil {
		return nil, err
	}

	log := o.log.With().Str("board", board.Model).Str("port", name).Logger()
	d := &Driver{
		board: board,
		port:  name,
		opts:  o,
		log:   log,
		ch: listener.New(o.dialer, name,
			listener.WithBaudRate(BaudRate),
			listener.WithRetries(o.retries),
			listener.WithLogger(o.log),
		),
	}

	if err := d.bootstrap(); err != nil {
		if cerr := d.ch.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("closing listener channel")
		}
		return nil, err
	}
	return d, nil
}

func (d *Driver) Board() profile.Board {
	return d.board
}

func (d *Driver) Port() string {
	return d.port
}

// Probe - One handshake with a single attempt
func (d *Driver) Probe() Outcome {
	return Classify(d.handshake(1))
}

func (d *Driver) handshake(retries int) *listener.HandshakeResponse {
	if err := d.ch.Open(); err != nil {
		d.log.Debug().Err(err).Msg("open listener channel")
		return nil
	}

	resp, err := d.ch.SendRetries(listener.HandshakeRequest(), retries)
	if err != nil {
		d.log.Debug().Err(err).Msg("handshake")
		return nil
	}
	hs, ok := resp.(*listener.HandshakeResponse)
	if !ok {
		d.log.Debug().Msgf("handshake answered with %T", resp)
		return nil
	}

	d.log.Debug().Int("major", hs.Major).Int("minor", hs.Minor).Msg("listener version")
	return hs
}

func (d *Driver) bootstrap() error {
	force := d.opts.force || d.board.AlwaysRedeploy

	if !d.opts.autoBootstrap {
		outcome := d.Probe()
		switch outcome {
		case NoResponse:
			return fault.New(fault.SyncFailure,
				"unable to get a handshake from the listener on %s, deploy it or enable auto bootstrap", d.port)
		case ProtocolOlderThanHost:
			d.log.Warn().Msg("listener is older than the host protocol, enable auto bootstrap to update it")
		}
		return nil
	}

	outcome := NoResponse
	if !force {
		outcome = d.Probe()
	}
	d.log.Info().Stringer("outcome", outcome).Bool("forced", force).Msg("listener probe")

	if outcome == ProtocolCurrentOrNewer {
		return nil
	}
	if err := d.redeploy(); err != nil {
		return err
	}

	d.log.Info().Dur("grace", d.board.RebootGrace).Msg("waiting for the board to reboot")
	d.opts.sleep(d.board.RebootGrace)

	hs := d.handshake(1)
	if hs == nil {
		return fault.New(fault.SyncFailure, "listener on %s did not answer after redeploy", d.port)
	}
	if Classify(hs) == ProtocolOlderThanHost {
		d.log.Warn().Int("major", hs.Major).Int("minor", hs.Minor).Msg("deployed listener is older than the host protocol")
	}
	return nil
}

func (d *Driver) listenerImage() (*memory.Image, error) {
	if d.opts.listener != nil {
		return d.opts.listener, nil
	}
	if d.opts.listenerFile != "" {
		return memory.LoadHexFile(d.opts.listenerFile, d.board.MCU.Flash.Size)
	}
	return nil, fault.New(fault.ConfigurationError, "no listener image to deploy to %s", d.board.Model)
}

func (d *Driver) programmer() (bootloader.Programmer, error) {
	if d.opts.factory != nil {
		return d.opts.factory(d.board, d.port)
	}

	u, err := uploader.New(d.board.Model, d.port,
		uploader.WithDialer(d.opts.dialer),
		uploader.WithLogger(d.opts.log),
		uploader.WithSleep(d.opts.sleep),
	)
	if err != nil {
		return nil, err
	}
	return u.Programmer()
}

// redeploy - Releases the port and programs the listener through the
// bootloader
func (d *Driver) redeploy() error {
	img, err := d.listenerImage()
	if err != nil {
		return err
	}

	if err := d.ch.Close(); err != nil {
		d.log.Warn().Err(err).Msg("closing listener channel before upload")
	}

	p, err := d.programmer()
	if err != nil {
		return err
	}

	d.log.Info().Msg("deploying listener")
	return bootloader.Run(p, bootloader.Upload{
		Image:    img,
		Memory:   d.board.MCU.Flash,
		Progress: d.opts.progress,
		Log:      d.log,
	})
}

func (d *Driver) Close() error {
	return d.ch.Close()
}
