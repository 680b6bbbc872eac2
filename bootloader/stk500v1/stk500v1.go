// Package stk500v1 implements the STK500 version 1 protocol spoken by the
// optiboot and ATmegaBOOT bootloaders.
package stk500v1

import (
	"bytes"
	"fmt"
	"time"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/profile"
	"github.com/rs/zerolog"
)

const (
	maxSyncRetries = 256
	syncInterval   = 20 * time.Millisecond
)

var _ bootloader.Programmer = (*Programmer)(nil)

// Programmer - STK500v1 on top of the shared connection
type Programmer struct {
	*bootloader.Conn
	mcu *profile.MCU
	log zerolog.Logger
}

func New(conn *bootloader.Conn, mcu *profile.MCU) *Programmer {
	return &Programmer{
		Conn: conn,
		mcu:  mcu,
		log:  conn.Logger().With().Str("protocol", "stk500v1").Logger(),
	}
}

// EstablishSync - Sends GET_SYNC until the bootloader answers INSYNC, then
// reads until its OK
func (p *Programmer) EstablishSync() error {
	synced := false
	for try := 0; try < maxSyncRetries && !synced; try++ {
		if err := p.Discard(); err != nil {
			return err
		}
		if err := p.Send(getSyncRequest()); err != nil {
			return err
		}

		b, err := p.ReceiveByte()
		if err != nil {
			p.log.Trace().Int("attempt", try).Msg("no answer to sync")
			continue
		}
		if b == respInSync {
			synced = true
			break
		}
		p.Sleep(syncInterval)
	}
	if !synced {
		return fault.New(fault.SyncFailure, "unable to establish sync after %d retries", maxSyncRetries)
	}

	for try := 0; try < maxSyncRetries; try++ {
		b, err := p.ReceiveByte()
		if err == nil && b == respOK {
			p.log.Debug().Msg("in sync")
			return nil
		}
	}
	return fault.New(fault.SyncFailure, "no OK after INSYNC")
}

// sendWithSyncRetry - Sends req and expects INSYNC. A NOSYNC answer makes it
// sync again and resend once.
func (p *Programmer) sendWithSyncRetry(req []byte) error {
	status, err := p.sendStatus(req)
	if err != nil {
		return err
	}

	if status == respNoSync {
		p.log.Warn().Hex("request", req[:1]).Msg("lost sync, resyncing")
		if err := p.EstablishSync(); err != nil {
			return err
		}
		if status, err = p.sendStatus(req); err != nil {
			return err
		}
	}

	if status != respInSync {
		return fault.New(fault.SyncFailure, "unable to acquire sync for command 0x%02X, got 0x%02X", req[0], status)
	}
	return nil
}

func (p *Programmer) sendStatus(req []byte) (byte, error) {
	if err := p.Send(req); err != nil {
		return 0, err
	}
	return p.ReceiveByte()
}

// expectOK - Reads the trailing status byte
func (p *Programmer) expectOK(what string) error {
	b, err := p.ReceiveByte()
	if err != nil {
		return err
	}

	switch b {
	case respOK:
		return nil
	case respFailed, respNoDevice:
		return fault.New(fault.DeviceNak, "%s: device answered 0x%02X", what, b)
	}
	return fault.New(fault.FramingMismatch, "%s: unexpected status 0x%02X", what, b)
}

func (p *Programmer) CheckDeviceSignature() error {
	want, err := p.mcu.SignatureBytes()
	if err != nil {
		return err
	}
	p.log.Debug().Str("expected", p.mcu.Signature).Msg("checking device signature")

	if err := p.sendWithSyncRetry(readSignatureRequest()); err != nil {
		return err
	}
	resp, err := p.Receive(4)
	if err != nil {
		return err
	}
	if resp[3] != respOK {
		return fault.New(fault.FramingMismatch, "unable to check device signature, got % X", resp)
	}

	if !bytes.Equal(resp[:3], want) {
		return fault.New(fault.SignatureMismatch, "found %s, expected %s", profile.FormatSignature(resp[:3]), p.mcu.Signature)
	}
	return nil
}

func (p *Programmer) getParameter(param byte) (byte, error) {
	if err := p.sendWithSyncRetry(getParameterRequest(param)); err != nil {
		return 0, err
	}

	value, err := p.ReceiveByte()
	if err != nil {
		return 0, err
	}

	status, err := p.ReceiveByte()
	if err != nil {
		return 0, err
	}
	switch status {
	case respOK:
		return value, nil
	case respFailed:
		return 0, fault.New(fault.DeviceNak, "retrieving parameter 0x%02X failed", param)
	}
	return 0, fault.New(fault.FramingMismatch, "protocol error retrieving parameter 0x%02X", param)
}

func (p *Programmer) InitializeDevice() error {
	major, err := p.getParameter(parmSwMajor)
	if err != nil {
		return err
	}
	minor, err := p.getParameter(parmSwMinor)
	if err != nil {
		return err
	}
	p.log.Info().Uint8("major", major).Uint8("minor", minor).Msg("bootloader software version")

	if err := p.sendWithSyncRetry(setDeviceRequest(p.mcu)); err != nil {
		return err
	}
	return p.expectOK("set device programming parameters")
}

// progmode - Enter and leave only fail on FAILED and NODEVICE
func (p *Programmer) progmode(req []byte, what string) error {
	if err := p.sendWithSyncRetry(req); err != nil {
		return err
	}

	b, err := p.ReceiveByte()
	if err != nil {
		return err
	}
	switch b {
	case respOK:
		return nil
	case respNoDevice, respFailed:
		return fault.New(fault.DeviceNak, "unable to %s programming mode", what)
	}
	p.log.Debug().Hex("status", []byte{b}).Msgf("ignoring status of %s programming mode", what)
	return nil
}

func (p *Programmer) EnableProgrammingMode() error {
	return p.progmode(enterProgmodeRequest(), "enable")
}

func (p *Programmer) LeaveProgrammingMode() error {
	return p.progmode(leaveProgmodeRequest(), "leave")
}

func (p *Programmer) LoadAddress(mem profile.Memory, offset int) error {
	p.log.Trace().Int("offset", offset).Msg("load address")
	if err := p.sendWithSyncRetry(loadAddressRequest(offset >> 1)); err != nil {
		return err
	}
	return p.expectOK(fmt.Sprintf("load address 0x%04X", offset))
}

func (p *Programmer) ExecuteWritePage(mem profile.Memory, offset int, data []byte) error {
	if err := p.sendWithSyncRetry(progPageRequest(mem.Type, data)); err != nil {
		return err
	}
	return p.expectOK(fmt.Sprintf("write at offset 0x%04X", offset))
}

func (p *Programmer) ExecuteReadPage(mem profile.Memory) ([]byte, error) {
	if err := p.sendWithSyncRetry(readPageRequest(mem.Type, mem.PageSize)); err != nil {
		return nil, err
	}

	page, err := p.Receive(mem.PageSize)
	if err != nil {
		return nil, err
	}
	if err := p.expectOK("read page"); err != nil {
		return nil, err
	}
	return page, nil
}
