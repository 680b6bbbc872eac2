// Package profile holds the per-microcontroller constants a bootloader
// programmer needs and the board table mapping Arduino models to them.
// Everything here is read-only after package initialisation.
package profile

import (
	"encoding/hex"
	"strings"

	"github.com/janch32/arduino-serial/fault"
)

// Protocol - Bootloader protocol family spoken by a board
type Protocol int

const (
	Stk500v1 Protocol = iota + 1
	Stk500v2
	Avr109
)

func (p Protocol) String() string {
	switch p {
	case Stk500v1:
		return "stk500v1"
	case Stk500v2:
		return "stk500v2"
	case Avr109:
		return "avr109"
	}
	return "unknown"
}

// ParseProtocol - Protocol by name, case-insensitive
func ParseProtocol(name string) (Protocol, error) {
	for _, p := range []Protocol{Stk500v1, Stk500v2, Avr109} {
		if strings.EqualFold(strings.TrimSpace(name), p.String()) {
			return p, nil
		}
	}
	return 0, fault.New(fault.ConfigurationError, "unrecognized protocol %q", name)
}

// MemoryType - Memory kind as encoded on the wire ('F' flash, 'E' eeprom)
type MemoryType byte

const (
	Flash  MemoryType = 'F'
	Eeprom MemoryType = 'E'
)

// Memory - Descriptor of one memory of an MCU
type Memory struct {
	Type          MemoryType
	Size          int
	PageSize      int
	PollVal1      byte
	PollVal2      byte
	Delay         byte
	CmdBytesRead  []byte
	CmdBytesWrite []byte
}

// Command - Logical device command with MCU specific ISP bytes
type Command int

const (
	PgmEnable Command = iota + 1
)

// MCU - Device profile of one microcontroller model
type MCU struct {
	Name           string
	Signature      string // "1E-95-0F"
	DeviceCode     byte
	DeviceRevision byte
	ProgType       byte
	ParallelMode   byte
	Polling        byte
	SelfTimed      byte
	LockBytes      byte
	FuseBytes      byte

	Timeout     byte
	StabDelay   byte
	CmdExeDelay byte
	SynchLoops  byte
	ByteDelay   byte
	PollValue   byte
	PollIndex   byte

	Commands map[Command][]byte

	Flash  Memory
	Eeprom Memory
}

// SignatureBytes - Decodes Signature
func (m *MCU) SignatureBytes() ([]byte, error) {
	sig, err := hex.DecodeString(strings.ReplaceAll(m.Signature, "-", ""))
	if err != nil || len(sig) == 0 {
		return nil, fault.New(fault.ConfigurationError, "invalid device signature %q for %s", m.Signature, m.Name)
	}
	return sig, nil
}

// FormatSignature - Signature bytes in the "1E-95-0F" notation
func FormatSignature(sig []byte) string {
	parts := make([]string, len(sig))
	for i, b := range sig {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{b}))
	}
	return strings.Join(parts, "-")
}

// Command bytes shared by the classic AVR parts
var avrCommands = map[Command][]byte{
	PgmEnable: {0xAC, 0x53, 0x00, 0x00},
}

func flash(size, pageSize int) Memory {
	return Memory{
		Type:          Flash,
		Size:          size,
		PageSize:      pageSize,
		PollVal1:      0xFF,
		PollVal2:      0xFF,
		Delay:         10,
		CmdBytesRead:  []byte{0x20, 0x00, 0x00},
		CmdBytesWrite: []byte{0x40, 0x4C, 0x00},
	}
}

func eeprom(size, pageSize int) Memory {
	return Memory{
		Type:          Eeprom,
		Size:          size,
		PageSize:      pageSize,
		PollVal1:      0xFF,
		PollVal2:      0xFF,
		Delay:         10,
		CmdBytesRead:  []byte{0xA0, 0x00, 0x00},
		CmdBytesWrite: []byte{0xC1, 0xC2, 0x00},
	}
}

func avr(name, signature string, code byte, fl, ee Memory) *MCU {
	return &MCU{
		Name:         name,
		Signature:    signature,
		DeviceCode:   code,
		ParallelMode: 1,
		Polling:      1,
		SelfTimed:    1,
		LockBytes:    1,
		FuseBytes:    3,
		Timeout:      200,
		StabDelay:    100,
		CmdExeDelay:  25,
		SynchLoops:   32,
		PollValue:    0x53,
		PollIndex:    0x03,
		Commands:     avrCommands,
		Flash:        fl,
		Eeprom:       ee,
	}
}

var (
	ATmega168  = avr("ATmega168", "1E-94-06", 0x86, flash(16*1024, 128), eeprom(512, 4))
	ATmega328P = avr("ATmega328P", "1E-95-0F", 0x86, flash(32*1024, 128), eeprom(1024, 4))
	ATmega32U4 = avr("ATmega32U4", "1E-95-87", 0x44, flash(32*1024, 128), eeprom(1024, 4))
	ATmega1284 = avr("ATmega1284", "1E-97-06", 0x82, flash(128*1024, 256), eeprom(4096, 8))
	ATmega2560 = avr("ATmega2560", "1E-98-01", 0xB2, flash(256*1024, 256), eeprom(4096, 8))
)
