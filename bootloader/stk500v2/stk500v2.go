// Package stk500v2 implements the STK500 version 2 protocol of the wiring
// bootloader found on the Mega boards.
package stk500v2

import (
	"bytes"
	"time"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/profile"
	"github.com/rs/zerolog"
)

const (
	maxSignOnTries  = 10
	maxStartSkip    = 256
	signOnInterval  = 20 * time.Millisecond
	signatureLength = 3
)

var _ bootloader.Programmer = (*Programmer)(nil)

type Programmer struct {
	*bootloader.Conn
	mcu *profile.MCU
	seq byte
	log zerolog.Logger
}

func New(conn *bootloader.Conn, mcu *profile.MCU) *Programmer {
	return &Programmer{
		Conn: conn,
		mcu:  mcu,
		log:  conn.Logger().With().Str("protocol", "stk500v2").Logger(),
	}
}

// receive - Reads one message, skipping noise before the start byte
func (p *Programmer) receive() (byte, []byte, error) {
	start := false
	for skipped := 0; skipped < maxStartSkip; skipped++ {
		b, err := p.ReceiveByte()
		if err != nil {
			return 0, nil, err
		}
		if b == MessageStart {
			start = true
			break
		}
	}
	if !start {
		return 0, nil, fault.New(fault.FramingMismatch, "no message start within %d bytes", maxStartSkip)
	}

	header, err := p.Receive(4)
	if err != nil {
		return 0, nil, err
	}
	size := int(header[1])<<8 | int(header[2])

	rest, err := p.Receive(size + 1)
	if err != nil {
		return 0, nil, err
	}

	msg := append(append([]byte{MessageStart}, header...), rest...)
	return Unframe(msg)
}

// exchange - Sends body and returns the answer once its sequence number,
// command echo and status are right
func (p *Programmer) exchange(body []byte) ([]byte, error) {
	seq := p.seq
	p.seq++

	if err := p.Send(Frame(seq, body)); err != nil {
		return nil, err
	}

	got, answer, err := p.receive()
	if err != nil {
		return nil, err
	}
	if got != seq {
		return nil, fault.New(fault.FramingMismatch, "sequence %d, want %d", got, seq)
	}
	if len(answer) < 2 || answer[0] != body[0] {
		return nil, fault.New(fault.FramingMismatch, "answer % X to command 0x%02X", answer, body[0])
	}
	if answer[1] != StatusCmdOK {
		return nil, fault.New(fault.DeviceNak, "command 0x%02X failed with status 0x%02X", body[0], answer[1])
	}
	return answer, nil
}

// EstablishSync - Signs on to the bootloader
func (p *Programmer) EstablishSync() error {
	for try := 0; try < maxSignOnTries; try++ {
		if err := p.Discard(); err != nil {
			return err
		}

		answer, err := p.exchange(signOnRequest())
		if err == nil {
			if len(answer) > 3 {
				p.log.Debug().Bytes("programmer", answer[3:]).Msg("signed on")
			}
			return nil
		}

		p.log.Trace().Err(err).Int("attempt", try).Msg("sign on")
		p.Sleep(signOnInterval)
	}
	return fault.New(fault.SyncFailure, "unable to sign on after %d tries", maxSignOnTries)
}

func (p *Programmer) CheckDeviceSignature() error {
	want, err := p.mcu.SignatureBytes()
	if err != nil {
		return err
	}

	sig := make([]byte, signatureLength)
	for i := range sig {
		answer, err := p.exchange(spiSignatureRequest(byte(i)))
		if err != nil {
			return err
		}
		if len(answer) < 6 {
			return fault.New(fault.FramingMismatch, "short SPI answer % X", answer)
		}
		sig[i] = answer[5]
	}

	if !bytes.Equal(sig, want) {
		return fault.New(fault.SignatureMismatch, "found %s, expected %s", profile.FormatSignature(sig), p.mcu.Signature)
	}
	return nil
}

func (p *Programmer) getParameter(param byte) (byte, error) {
	answer, err := p.exchange(getParameterRequest(param))
	if err != nil {
		return 0, err
	}
	if len(answer) < 3 {
		return 0, fault.New(fault.FramingMismatch, "short parameter answer % X", answer)
	}
	return answer[2], nil
}

// InitializeDevice - Only reads the version parameters; the wiring
// bootloader takes the device parameters from the enter progmode command.
func (p *Programmer) InitializeDevice() error {
	hw, err := p.getParameter(ParamHwVer)
	if err != nil {
		return err
	}
	major, err := p.getParameter(ParamSwMajor)
	if err != nil {
		return err
	}
	minor, err := p.getParameter(ParamSwMinor)
	if err != nil {
		return err
	}

	p.log.Info().Uint8("hw", hw).Uint8("major", major).Uint8("minor", minor).Msg("bootloader version")
	return nil
}

func (p *Programmer) EnableProgrammingMode() error {
	if _, ok := p.mcu.Commands[profile.PgmEnable]; !ok {
		return fault.New(fault.ConfigurationError, "%s has no programming enable command", p.mcu.Name)
	}
	_, err := p.exchange(enterProgmodeRequest(p.mcu))
	return err
}

func (p *Programmer) LeaveProgrammingMode() error {
	_, err := p.exchange(leaveProgmodeRequest())
	return err
}

// LoadAddress - Flash is word addressed, EEPROM byte addressed
func (p *Programmer) LoadAddress(mem profile.Memory, offset int) error {
	addr := offset
	if mem.Type == profile.Flash {
		addr >>= 1
	}

	if _, err := p.exchange(loadAddressRequest(mem, addr)); err != nil {
		return fault.Wrap(fault.KindOf(err), err, "load address 0x%04X", offset)
	}
	return nil
}

func (p *Programmer) ExecuteWritePage(mem profile.Memory, offset int, data []byte) error {
	if _, err := p.exchange(programPageRequest(mem, data)); err != nil {
		return fault.Wrap(fault.KindOf(err), err, "write at offset 0x%04X", offset)
	}
	return nil
}

// ExecuteReadPage - Answer is cmd, status, data, status
func (p *Programmer) ExecuteReadPage(mem profile.Memory) ([]byte, error) {
	answer, err := p.exchange(readPageRequest(mem))
	if err != nil {
		return nil, err
	}

	if len(answer) != mem.PageSize+3 {
		return nil, fault.New(fault.FramingMismatch, "read page answer has %d bytes, want %d", len(answer), mem.PageSize+3)
	}
	if answer[len(answer)-1] != StatusCmdOK {
		return nil, fault.New(fault.DeviceNak, "read page ended with status 0x%02X", answer[len(answer)-1])
	}
	return answer[2 : 2+mem.PageSize], nil
}
