// Package listenertest simulates the listener sketch on the far side of a
// transporttest.Port.
package listenertest

import (
	"bytes"

	"github.com/janch32/arduino-serial/listener"
)

// Device - Listener sketch with a pin table. Install Respond as the
// Responder of a transporttest.Port.
type Device struct {
	Major, Minor byte
	// Silent makes the device ignore everything, like a board with no
	// listener flashed.
	Silent bool
	// Handle overrides the built-in request handling when set. It returns
	// the response body starting with the ack byte.
	Handle   func(req listener.Request) []byte
	Requests []listener.Request
	Digital  map[byte]byte
	Analog   map[byte]int
	Modes    map[byte]byte
	// BadChecksums counts packets dropped for a wrong check byte
	BadChecksums int

	buf     []byte
	command int
	length  int
}

// New - Device reporting the given protocol version
func New(major, minor byte) *Device {
	return &Device{
		Major:   major,
		Minor:   minor,
		Digital: map[byte]byte{},
		Analog:  map[byte]int{},
		Modes:   map[byte]byte{},
		command: -1,
	}
}

// Respond - Consumes host bytes and returns what the sketch would answer
func (d *Device) Respond(written []byte) []byte {
	if d.Silent {
		return nil
	}

	d.buf = append(d.buf, written...)
	var out []byte

	for len(d.buf) > 0 {
		if d.command >= 0 {
			need := d.length + 5
			if len(d.buf) < need {
				break
			}
			out = append(out, d.packet(d.buf[:need])...)
			d.buf = d.buf[need:]
			d.command = -1
			continue
		}

		if len(d.buf) >= 4 && bytes.Equal(d.buf[:4], listener.SyncRequest) {
			out = append(out, listener.SyncResponse...)
			d.buf = d.buf[4:]
			continue
		}
		if d.buf[0] == listener.StartOfCommand {
			if len(d.buf) < 3 {
				break
			}
			d.command = int(d.buf[1])
			d.length = int(d.buf[2])
			out = append(out, d.buf[2], d.buf[1], listener.StartOfCommand)
			d.buf = d.buf[3:]
			continue
		}
		if d.buf[0] == listener.SyncRequest[0] && len(d.buf) < 4 {
			break
		}
		d.buf = d.buf[1:]
	}
	return out
}

func (d *Device) packet(raw []byte) []byte {
	body := raw[:d.length+2]
	c0, c1 := listener.CheckBytes(listener.Fletcher16(body))
	if raw[d.length+2] != c0 || raw[d.length+3] != c1 || raw[d.length+4] != listener.AllBytesWritten {
		d.BadChecksums++
		return nil
	}

	req := listener.Request{Command: body[0], Payload: append([]byte(nil), body[2:]...)}
	d.Requests = append(d.Requests, req)

	var resp []byte
	if d.Handle != nil {
		resp = d.Handle(req)
	} else {
		resp = d.handle(req)
	}
	return append([]byte{listener.StartOfResponse, byte(len(resp))}, resp...)
}

func (d *Device) handle(req listener.Request) []byte {
	p := req.Payload
	switch req.Command {
	case listener.CmdHandshake:
		return []byte{listener.CmdHandshakeAck, d.Major, d.Minor}
	case listener.CmdDigitalRead:
		return []byte{listener.CmdDigitalReadAck, p[0], d.Digital[p[0]]}
	case listener.CmdDigitalWrite:
		d.Digital[p[0]] = p[1]
		return []byte{listener.CmdDigitalWriteAck, p[0], p[1]}
	case listener.CmdPinMode:
		d.Modes[p[0]] = p[1]
		return []byte{listener.CmdPinModeAck, p[0], p[1]}
	case listener.CmdAnalogRead:
		v := d.Analog[p[0]]
		return []byte{listener.CmdAnalogReadAck, p[0], byte(v >> 8), byte(v)}
	case listener.CmdAnalogWrite:
		d.Analog[p[0]] = int(p[1])
		return []byte{listener.CmdAnalogWriteAck, p[0], p[1]}
	case listener.CmdTone:
		return []byte{listener.CmdToneAck}
	case listener.CmdNoTone:
		return []byte{listener.CmdNoToneAck}
	case listener.CmdAnalogReference:
		return []byte{listener.CmdAnalogReferenceAck, p[0]}
	case listener.CmdShiftOut:
		return []byte{listener.CmdShiftOutAck, p[0], p[1], p[2], p[3]}
	case listener.CmdShiftIn:
		return []byte{listener.CmdShiftInAck, p[0], p[1], p[2], d.Digital[p[0]]}
	}
	return []byte{listener.CmdErrorAck, req.Command, 0, 0}
}
