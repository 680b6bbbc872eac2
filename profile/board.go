package profile

import (
	"sort"
	"strings"
	"time"

	"github.com/janch32/arduino-serial/fault"
)

// DefaultRebootGrace - Time a board needs to restart into a fresh sketch
// when the board table does not say otherwise
const DefaultRebootGrace = 2 * time.Second

// Board - Arduino model: which MCU it carries and how to reach its bootloader.
// Reset behaviours use the reset-spec notation ("1200bps", "DTR;true",
// "DTR-RTS;250;50").
type Board struct {
	Model          string
	MCU            *MCU
	Protocol       Protocol
	BaudRate       int
	PreOpenReset   string
	PostOpenReset  string
	CloseReset     string
	SleepAfterOpen time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RebootGrace    time.Duration
	AlwaysRedeploy bool
}

var boards = []Board{
	{
		Model:         "uno",
		MCU:           ATmega328P,
		Protocol:      Stk500v1,
		BaudRate:      115200,
		PostOpenReset: "DTR-RTS;250;50",
	},
	{
		Model:          "nano",
		MCU:            ATmega328P,
		Protocol:       Stk500v1,
		BaudRate:       115200,
		PostOpenReset:  "DTR-RTS;250;50",
		AlwaysRedeploy: true,
	},
	{
		Model:         "nano-old",
		MCU:           ATmega328P,
		Protocol:      Stk500v1,
		BaudRate:      57600,
		PostOpenReset: "DTR-RTS;250;50",
	},
	{
		Model:         "diecimila",
		MCU:           ATmega168,
		Protocol:      Stk500v1,
		BaudRate:      19200,
		PostOpenReset: "DTR-RTS;250;50",
	},
	{
		Model:         "duemilanove",
		MCU:           ATmega328P,
		Protocol:      Stk500v1,
		BaudRate:      57600,
		PostOpenReset: "DTR-RTS;250;50",
	},
	{
		Model:         "mega1284",
		MCU:           ATmega1284,
		Protocol:      Stk500v1,
		BaudRate:      115200,
		PostOpenReset: "DTR-RTS;250;50",
	},
	{
		Model:         "mega2560",
		MCU:           ATmega2560,
		Protocol:      Stk500v2,
		BaudRate:      115200,
		PostOpenReset: "DTR-RTS;50;250;true",
		RebootGrace:   4 * time.Second,
	},
	{
		Model:        "leonardo",
		MCU:          ATmega32U4,
		Protocol:     Avr109,
		BaudRate:     57600,
		PreOpenReset: "1200bps",
		CloseReset:   "DTR-RTS;250;50",
	},
	{
		Model:        "micro",
		MCU:          ATmega32U4,
		Protocol:     Avr109,
		BaudRate:     57600,
		PreOpenReset: "1200bps",
		CloseReset:   "DTR-RTS;250;50",
		RebootGrace:  8 * time.Second,
	},
}

func init() {
	for i := range boards {
		b := &boards[i]
		if b.ReadTimeout == 0 {
			b.ReadTimeout = time.Second
		}
		if b.WriteTimeout == 0 {
			b.WriteTimeout = time.Second
		}
		if b.RebootGrace == 0 {
			b.RebootGrace = DefaultRebootGrace
		}
	}
}

// Lookup - Board by model name, case-insensitive
func Lookup(model string) (Board, error) {
	for _, b := range boards {
		if strings.EqualFold(b.Model, strings.TrimSpace(model)) {
			return b, nil
		}
	}
	return Board{}, fault.New(fault.ConfigurationError, "unable to find configuration for board %q", model)
}

// Models - Names of all known boards
func Models() []string {
	names := make([]string, 0, len(boards))
	for _, b := range boards {
		names = append(names, b.Model)
	}
	sort.Strings(names)
	return names
}
