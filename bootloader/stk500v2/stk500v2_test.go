package stk500v2

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/janch32/arduino-serial/bootloader"
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/memory"
	"github.com/janch32/arduino-serial/profile"
	"github.com/janch32/arduino-serial/reset"
	"github.com/janch32/arduino-serial/transport"
	"github.com/janch32/arduino-serial/transport/transporttest"
	"github.com/rs/zerolog"
)

// wiring - Simulated STK500v2 bootloader. Every host write is one frame.
type wiring struct {
	sig      []byte
	flash    []byte
	addr     int
	badSum   bool
	commands []byte
}

func newWiring(mcu *profile.MCU) *wiring {
	sig, _ := mcu.SignatureBytes()
	return &wiring{sig: sig, flash: bytes.Repeat([]byte{0xFF}, mcu.Flash.Size)}
}

func (w *wiring) respond(written []byte) []byte {
	seq, body, err := Unframe(written)
	if err != nil {
		return nil
	}
	w.commands = append(w.commands, body[0])

	answer := []byte{body[0], StatusCmdOK}
	switch body[0] {
	case CmdSignOn:
		answer = append(answer, 8)
		answer = append(answer, "AVRISP_2"...)
	case CmdGetParameter:
		answer = append(answer, body[1]&0x0F)
	case CmdSpiMulti:
		answer = append(answer, 0, 0, 0, w.sig[body[6]], StatusCmdOK)
	case CmdLoadAddress:
		w.addr = (int(body[1]&0x7F)<<24 | int(body[2])<<16 | int(body[3])<<8 | int(body[4])) * 2
	case CmdProgramFlashIsp:
		n := int(body[1])<<8 | int(body[2])
		copy(w.flash[w.addr:], body[10:10+n])
	case CmdReadFlashIsp:
		n := int(body[1])<<8 | int(body[2])
		answer = append(answer, w.flash[w.addr:w.addr+n]...)
		answer = append(answer, StatusCmdOK)
	}

	out := Frame(seq, answer)
	if w.badSum {
		out[len(out)-1]++
	}
	// leading noise is skipped by the host
	return append([]byte{0x00}, out...)
}

func newProgrammer(t *testing.T, dev *wiring) (*Programmer, *transporttest.Port) {
	t.Helper()

	port := &transporttest.Port{Name: "COM5", Respond: dev.respond, MaxChunk: 64}
	conn := bootloader.NewConn(transporttest.NewDialer(port), transport.Config{Name: "COM5", BaudRate: 115200}, reset.Hooks{}, 0, zerolog.Nop())
	conn.SetSleep(func(time.Duration) {})
	return New(conn, profile.ATmega2560), port
}

func TestFrame(t *testing.T) {
	got := Frame(3, []byte{CmdSignOn})
	want := []byte{0x1B, 0x03, 0x00, 0x01, 0x0E, 0x01, 0x1B ^ 0x03 ^ 0x01 ^ 0x0E ^ 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}

	seq, body, err := Unframe(got)
	if err != nil || seq != 3 || !bytes.Equal(body, []byte{CmdSignOn}) {
		t.Fatalf("Unframe = %d, % X, %v", seq, body, err)
	}

	got[len(got)-1] ^= 0xFF
	if _, _, err := Unframe(got); !errors.Is(err, fault.FramingMismatch) {
		t.Fatalf("bad checksum accepted: %v", err)
	}
}

func TestRequestEncoding(t *testing.T) {
	mcu := profile.ATmega2560
	tests := []struct {
		got, want []byte
	}{
		{loadAddressRequest(mcu.Flash, 0x1234), []byte{0x06, 0x80, 0x00, 0x12, 0x34}},
		{loadAddressRequest(mcu.Eeprom, 0x0010), []byte{0x06, 0x00, 0x00, 0x00, 0x10}},
		{spiSignatureRequest(2), []byte{0x1D, 4, 4, 0, 0x30, 0x00, 2, 0x00}},
		{readPageRequest(mcu.Flash), []byte{0x14, 0x01, 0x00, 0x20}},
		{programPageRequest(mcu.Flash, []byte{0xAA}), []byte{0x13, 0x00, 0x01, 0xC1, 10, 0x40, 0x4C, 0x20, 0xFF, 0xFF, 0xAA}},
		{enterProgmodeRequest(mcu), []byte{0x10, 200, 100, 25, 32, 0, 0x53, 3, 0xAC, 0x53, 0x00, 0x00}},
	}
	for _, tt := range tests {
		if !bytes.Equal(tt.got, tt.want) {
			t.Errorf("got % X, want % X", tt.got, tt.want)
		}
	}
}

func TestUpload(t *testing.T) {
	img := memory.NewImage(profile.ATmega2560.Flash.Size, memory.Fill)
	if err := img.Set(0x200, 0x0C, 0x94, 0x72, 0x00); err != nil {
		t.Fatal(err)
	}

	dev := newWiring(profile.ATmega2560)
	p, port := newProgrammer(t, dev)

	if err := bootloader.Run(p, bootloader.Upload{Image: img, Memory: profile.ATmega2560.Flash, Log: zerolog.Nop()}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dev.flash[0x200:0x204], []byte{0x0C, 0x94, 0x72, 0x00}) {
		t.Errorf("flash % X", dev.flash[0x200:0x204])
	}

	want := []byte{
		CmdSignOn,
		CmdSpiMulti, CmdSpiMulti, CmdSpiMulti,
		CmdGetParameter, CmdGetParameter, CmdGetParameter,
		CmdEnterProgmodeIsp,
		CmdLoadAddress, CmdProgramFlashIsp,
		CmdLoadAddress, CmdReadFlashIsp,
		CmdLoadAddress, CmdReadFlashIsp,
		CmdLoadAddress, CmdReadFlashIsp,
		CmdLeaveProgmodeIsp,
	}
	if !bytes.Equal(dev.commands, want) {
		t.Errorf("commands % X\nwant     % X", dev.commands, want)
	}
	if !port.Closed {
		t.Error("port not closed")
	}
}

func TestSignatureMismatch(t *testing.T) {
	dev := newWiring(profile.ATmega1284)
	p, _ := newProgrammer(t, dev)
	if err := p.Open(); err != nil {
		t.Fatal(err)
	}
	if err := p.EstablishSync(); err != nil {
		t.Fatal(err)
	}

	if err := p.CheckDeviceSignature(); !errors.Is(err, fault.SignatureMismatch) {
		t.Fatalf("err = %v, want signature mismatch", err)
	}
}

func TestSignOnGivesUp(t *testing.T) {
	dev := newWiring(profile.ATmega2560)
	dev.badSum = true
	p, port := newProgrammer(t, dev)
	if err := p.Open(); err != nil {
		t.Fatal(err)
	}

	if err := p.EstablishSync(); !errors.Is(err, fault.SyncFailure) {
		t.Fatalf("err = %v, want sync failure", err)
	}
	if len(port.Writes) != maxSignOnTries {
		t.Errorf("%d sign on frames, want %d", len(port.Writes), maxSignOnTries)
	}
}
