// Package uploader flashes an image onto a board: it looks the board up,
// resolves its port, builds the reset hooks and the programmer for the
// board's bootloader protocol and runs the programming lifecycle.
package uploader

import (
	"time"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/bootloader/avr109"
	"github.com/janch32/arduino-serial/bootloader/stk500v1"
	"github.com/janch32/arduino-serial/bootloader/stk500v2"
	"github.com/janch32/arduino-serial/discover"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/memory"
	"github.com/janch32/arduino-serial/profile"
	"github.com/janch32/arduino-serial/reset"
	"github.com/janch32/arduino-serial/transport"
	"github.com/rs/zerolog"
)

type Option func(*Uploader)

// WithDialer - Where ports come from, go-serial by default
func WithDialer(d transport.Dialer) Option {
	return func(u *Uploader) { u.dialer = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(u *Uploader) { u.log = log }
}

func WithProgress(p bootloader.Progress) Option {
	return func(u *Uploader) { u.progress = p }
}

// WithStateHook - Called on every lifecycle state reached
func WithStateHook(f func(bootloader.State)) Option {
	return func(u *Uploader) { u.onState = f }
}

// WithSleep - Replaces time.Sleep in the reset maneuvers and settle delays
func WithSleep(sleep func(time.Duration)) Option {
	return func(u *Uploader) { u.sleep = sleep }
}

type Uploader struct {
	board    profile.Board
	port     string
	dialer   transport.Dialer
	log      zerolog.Logger
	progress bootloader.Progress
	onState  func(bootloader.State)
	sleep    func(time.Duration)
}

// New - Uploader for the given board model. An empty port selects the only
// serial port present.
func New(model, port string, opts ...Option) (*Uploader, error) {
	board, err := profile.Lookup(model)
	if err != nil {
		return nil, err
	}

	u := &Uploader{
		board:  board,
		port:   port,
		dialer: transport.Serial{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

func (u *Uploader) Board() profile.Board {
	return u.board
}

func (u *Uploader) hooks() (reset.Hooks, error) {
	b := u.board
	hooks, err := reset.ParseHooks(b.PreOpenReset, b.PostOpenReset, b.CloseReset)
	if err != nil {
		return hooks, err
	}

	if u.sleep != nil {
		for _, s := range []reset.Strategy{hooks.PreOpen, hooks.PostOpen, hooks.PreClose} {
			if r, ok := s.(*reset.DTRRTS); ok {
				r.Sleep = u.sleep
			}
		}
	}
	return hooks, nil
}

// Programmer - Programmer speaking the board's protocol on the resolved port
func (u *Uploader) Programmer() (bootloader.Programmer, error) {
	b := u.board

	name, err := discover.Resolve(u.dialer, u.port)
	if err != nil {
		return nil, err
	}
	hooks, err := u.hooks()
	if err != nil {
		return nil, err
	}

	log := u.log.With().Str("board", b.Model).Logger()
	cfg := transport.Config{
		Name:         name,
		BaudRate:     b.BaudRate,
		ReadTimeout:  b.ReadTimeout,
		WriteTimeout: b.WriteTimeout,
	}
	conn := bootloader.NewConn(u.dialer, cfg, hooks, b.SleepAfterOpen, log)
	if u.sleep != nil {
		conn.SetSleep(u.sleep)
	}

	switch b.Protocol {
	case profile.Stk500v1:
		return stk500v1.New(conn, b.MCU), nil
	case profile.Stk500v2:
		return stk500v2.New(conn, b.MCU), nil
	case profile.Avr109:
		return avr109.New(conn, b.MCU), nil
	}
	return nil, fault.New(fault.ConfigurationError, "board %s has no supported protocol (%v)", b.Model, b.Protocol)
}

// Upload - Programs img into the flash memory and verifies it
func (u *Uploader) Upload(img *memory.Image) error {
	p, err := u.Programmer()
	if err != nil {
		return err
	}

	u.log.Info().Str("board", u.board.Model).Str("mcu", u.board.MCU.Name).Msg("uploading")
	return bootloader.Run(p, bootloader.Upload{
		Image:    img,
		Memory:   u.board.MCU.Flash,
		Progress: u.progress,
		OnState:  u.onState,
		Log:      u.log,
	})
}

// UploadFile - Upload of an Intel HEX file
func (u *Uploader) UploadFile(path string) error {
	img, err := memory.LoadHexFile(path, u.board.MCU.Flash.Size)
	if err != nil {
		return err
	}
	return u.Upload(img)
}
