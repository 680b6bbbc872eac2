// Package avr109 implements the AVR109 protocol of the Caterina bootloader
// on boards with native USB (Leonardo, Micro).
package avr109

import (
	"bytes"
	"fmt"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/profile"
	"github.com/rs/zerolog"
)

const (
	cmdSoftwareID     byte = 'S'
	cmdSoftwareVer    byte = 'V'
	cmdProgrammerType byte = 'p'
	cmdAutoIncrement  byte = 'a'
	cmdBlockSupport   byte = 'b'
	cmdDeviceCodes    byte = 't'
	cmdSelectDevice   byte = 'T'
	cmdEnterProgmode  byte = 'P'
	cmdLeaveProgmode  byte = 'L'
	cmdSetAddress     byte = 'A'
	cmdReadSignature  byte = 's'
	cmdBlockWrite     byte = 'B'
	cmdBlockRead      byte = 'g'
	cmdExitBootloader byte = 'E'

	carriageReturn byte = 0x0D
	supported      byte = 'Y'

	softwareIDLength = 7
	maxDeviceCodes   = 256
)

var _ bootloader.Programmer = (*Programmer)(nil)

type Programmer struct {
	*bootloader.Conn
	mcu *profile.MCU
	log zerolog.Logger
}

func New(conn *bootloader.Conn, mcu *profile.MCU) *Programmer {
	return &Programmer{
		Conn: conn,
		mcu:  mcu,
		log:  conn.Logger().With().Str("protocol", "avr109").Logger(),
	}
}

// expectCR - Every command without an answer is acknowledged with CR
func (p *Programmer) expectCR(what string) error {
	b, err := p.ReceiveByte()
	if err != nil {
		return err
	}
	if b != carriageReturn {
		return fault.New(fault.FramingMismatch, "%s: expected CR, got 0x%02X", what, b)
	}
	return nil
}

func (p *Programmer) command(req []byte, what string) error {
	if err := p.Send(req); err != nil {
		return err
	}
	return p.expectCR(what)
}

func (p *Programmer) query(cmd byte, length int) ([]byte, error) {
	if err := p.Send([]byte{cmd}); err != nil {
		return nil, err
	}
	return p.Receive(length)
}

// EstablishSync - Caterina is ready as soon as the port opens, only stale
// input is dropped
func (p *Programmer) EstablishSync() error {
	return p.Discard()
}

// CheckDeviceSignature - The signature comes back last byte first
func (p *Programmer) CheckDeviceSignature() error {
	want, err := p.mcu.SignatureBytes()
	if err != nil {
		return err
	}

	resp, err := p.query(cmdReadSignature, 3)
	if err != nil {
		return err
	}
	sig := []byte{resp[2], resp[1], resp[0]}

	if !bytes.Equal(sig, want) {
		return fault.New(fault.SignatureMismatch, "found %s, expected %s", profile.FormatSignature(sig), p.mcu.Signature)
	}
	return nil
}

func (p *Programmer) deviceCodes() ([]byte, error) {
	if err := p.Send([]byte{cmdDeviceCodes}); err != nil {
		return nil, err
	}

	var codes []byte
	for i := 0; i < maxDeviceCodes; i++ {
		b, err := p.ReceiveByte()
		if err != nil {
			return nil, err
		}
		if b == 0x00 {
			return codes, nil
		}
		codes = append(codes, b)
	}
	return nil, fault.New(fault.FramingMismatch, "device code list not terminated")
}

func (p *Programmer) InitializeDevice() error {
	id, err := p.query(cmdSoftwareID, softwareIDLength)
	if err != nil {
		return err
	}
	version, err := p.query(cmdSoftwareVer, 2)
	if err != nil {
		return err
	}
	kind, err := p.query(cmdProgrammerType, 1)
	if err != nil {
		return err
	}
	p.log.Info().Bytes("id", id).Bytes("version", version).Bytes("type", kind).Msg("bootloader")

	auto, err := p.query(cmdAutoIncrement, 1)
	if err != nil {
		return err
	}
	block, err := p.query(cmdBlockSupport, 3)
	if err != nil {
		return err
	}
	p.log.Debug().
		Bool("autoIncrement", auto[0] == supported).
		Bool("blockMode", block[0] == supported).
		Int("blockSize", int(block[1])<<8|int(block[2])).
		Msg("bootloader features")

	codes, err := p.deviceCodes()
	if err != nil {
		return err
	}
	if bytes.IndexByte(codes, p.mcu.DeviceCode) < 0 {
		return fault.New(fault.DeviceNak, "bootloader does not support device code 0x%02X (has % X)", p.mcu.DeviceCode, codes)
	}

	return p.command([]byte{cmdSelectDevice, p.mcu.DeviceCode}, "select device")
}

func (p *Programmer) EnableProgrammingMode() error {
	return p.command([]byte{cmdEnterProgmode}, "enter programming mode")
}

func (p *Programmer) LeaveProgrammingMode() error {
	return p.command([]byte{cmdLeaveProgmode}, "leave programming mode")
}

// LoadAddress - Word address for flash, byte address for EEPROM
func (p *Programmer) LoadAddress(mem profile.Memory, offset int) error {
	addr := offset
	if mem.Type == profile.Flash {
		addr >>= 1
	}
	return p.command([]byte{cmdSetAddress, byte(addr >> 8), byte(addr)}, fmt.Sprintf("load address 0x%04X", offset))
}

func (p *Programmer) ExecuteWritePage(mem profile.Memory, offset int, data []byte) error {
	req := make([]byte, 0, len(data)+4)
	req = append(req, cmdBlockWrite, byte(len(data)>>8), byte(len(data)), byte(mem.Type))
	req = append(req, data...)
	return p.command(req, fmt.Sprintf("write at offset 0x%04X", offset))
}

func (p *Programmer) ExecuteReadPage(mem profile.Memory) ([]byte, error) {
	req := []byte{cmdBlockRead, byte(mem.PageSize >> 8), byte(mem.PageSize), byte(mem.Type)}
	if err := p.Send(req); err != nil {
		return nil, err
	}
	return p.Receive(mem.PageSize)
}

// Close - Asks the bootloader to start the sketch, then closes the port
func (p *Programmer) Close() error {
	if p.IsOpen() {
		if err := p.command([]byte{cmdExitBootloader}, "exit bootloader"); err != nil {
			p.log.Warn().Err(err).Msg("exit bootloader")
		}
	}
	return p.Conn.Close()
}
