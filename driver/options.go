package driver

import (
	"time"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/memory"
	"github.com/janch32/arduino-serial/profile"
	"github.com/janch32/arduino-serial/transport"
	"github.com/rs/zerolog"
)

// ProgrammerFactory - Builds the programmer used to deploy the listener
type ProgrammerFactory func(board profile.Board, port string) (bootloader.Programmer, error)

type options struct {
	dialer        transport.Dialer
	log           zerolog.Logger
	force         bool
	autoBootstrap bool
	listener      *memory.Image
	listenerFile  string
	retries       int
	progress      bootloader.Progress
	factory       ProgrammerFactory
	sleep         func(time.Duration)
}

type Option func(*options)

func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithForceRedeploy - Deploy the listener without asking the board first
func WithForceRedeploy(force bool) Option {
	return func(o *options) { o.force = force }
}

// WithAutoBootstrap - Deploy the listener when the board does not run a
// current one
func WithAutoBootstrap(auto bool) Option {
	return func(o *options) { o.autoBootstrap = auto }
}

// WithListener - Listener sketch image to deploy
func WithListener(img *memory.Image) Option {
	return func(o *options) { o.listener = img }
}

// WithListenerFile - Listener sketch as an Intel HEX file
func WithListenerFile(path string) Option {
	return func(o *options) { o.listenerFile = path }
}

// WithRetries - Retry budget of runtime requests
func WithRetries(n int) Option {
	return func(o *options) { o.retries = n }
}

func WithProgress(p bootloader.Progress) Option {
	return func(o *options) { o.progress = p }
}

func WithProgrammerFactory(f ProgrammerFactory) Option {
	return func(o *options) { o.factory = f }
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(o *options) { o.sleep = sleep }
}
