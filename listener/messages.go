package listener

import (
	"fmt"

	"github.com/janch32/arduino-serial/fault"
)

// Command bytes of the listener protocol. Each request has its own
// acknowledgement byte which starts the matching response.
const (
	CmdHandshake          byte = 0x01
	CmdHandshakeAck       byte = 0x02
	CmdDigitalRead        byte = 0x03
	CmdDigitalReadAck     byte = 0x04
	CmdDigitalWrite       byte = 0x05
	CmdDigitalWriteAck    byte = 0x06
	CmdPinMode            byte = 0x07
	CmdPinModeAck         byte = 0x08
	CmdAnalogRead         byte = 0x09
	CmdAnalogReadAck      byte = 0x0A
	CmdAnalogWrite        byte = 0x0B
	CmdAnalogWriteAck     byte = 0x0C
	CmdTone               byte = 0x0D
	CmdToneAck            byte = 0x0E
	CmdNoTone             byte = 0x0F
	CmdNoToneAck          byte = 0x10
	CmdAnalogReference    byte = 0x11
	CmdAnalogReferenceAck byte = 0x12
	CmdShiftOut           byte = 0x13
	CmdShiftOutAck        byte = 0x14
	CmdShiftIn            byte = 0x15
	CmdShiftInAck         byte = 0x16
	CmdErrorAck           byte = 0xEF
)

// Framing markers
const (
	StartOfCommand  byte = 0xFB
	AllBytesWritten byte = 0xFA
	StartOfResponse byte = 0xF9
)

var (
	SyncRequest  = []byte{0xFF, 0xFE, 0xFD, 0xFC}
	SyncResponse = []byte{0xFC, 0xFD, 0xFE, 0xFF}
)

type DigitalValue byte

const (
	Low  DigitalValue = 0
	High DigitalValue = 1
)

type PinMode byte

const (
	Input       PinMode = 0
	Output      PinMode = 1
	InputPullup PinMode = 2
)

type BitOrder byte

const (
	LSBFirst BitOrder = 0
	MSBFirst BitOrder = 1
)

type AnalogReferenceType byte

const (
	External    AnalogReferenceType = 0
	Default     AnalogReferenceType = 1
	Internal1V1 AnalogReferenceType = 2
	Internal    AnalogReferenceType = 3
)

// Request - Command byte plus payload
type Request struct {
	Command byte
	Payload []byte
}

func (r Request) String() string {
	return fmt.Sprintf("request 0x%02X % X", r.Command, r.Payload)
}

// Packet - [command, length, payload..., c0, c1]
func (r Request) Packet() []byte {
	packet := make([]byte, 0, len(r.Payload)+4)
	packet = append(packet, r.Command, byte(len(r.Payload)))
	packet = append(packet, r.Payload...)
	c0, c1 := CheckBytes(Fletcher16(packet))
	return append(packet, c0, c1)
}

func HandshakeRequest() Request {
	return Request{Command: CmdHandshake}
}

func DigitalReadRequest(pin byte) Request {
	return Request{Command: CmdDigitalRead, Payload: []byte{pin}}
}

func DigitalWriteRequest(pin byte, value DigitalValue) Request {
	return Request{Command: CmdDigitalWrite, Payload: []byte{pin, byte(value)}}
}

func PinModeRequest(pin byte, mode PinMode) Request {
	return Request{Command: CmdPinMode, Payload: []byte{pin, byte(mode)}}
}

func AnalogReadRequest(pin byte) Request {
	return Request{Command: CmdAnalogRead, Payload: []byte{pin}}
}

func AnalogWriteRequest(pin byte, value byte) Request {
	return Request{Command: CmdAnalogWrite, Payload: []byte{pin, value}}
}

// ToneRequest - Frequency in Hz and duration in ms, both big-endian
func ToneRequest(pin byte, frequency uint16, duration uint32) Request {
	return Request{Command: CmdTone, Payload: []byte{
		pin,
		byte(frequency >> 8), byte(frequency),
		byte(duration >> 24), byte(duration >> 16), byte(duration >> 8), byte(duration),
	}}
}

func NoToneRequest(pin byte) Request {
	return Request{Command: CmdNoTone, Payload: []byte{pin}}
}

func AnalogReferenceRequest(ref AnalogReferenceType) Request {
	return Request{Command: CmdAnalogReference, Payload: []byte{byte(ref)}}
}

func ShiftOutRequest(dataPin, clockPin byte, order BitOrder, value byte) Request {
	return Request{Command: CmdShiftOut, Payload: []byte{dataPin, clockPin, byte(order), value}}
}

func ShiftInRequest(dataPin, clockPin byte, order BitOrder) Request {
	return Request{Command: CmdShiftIn, Payload: []byte{dataPin, clockPin, byte(order)}}
}

// Response - Decoded answer of the listener
type Response interface {
	Ack() byte
}

type HandshakeResponse struct {
	Major, Minor int
}

// Version - major*10 + minor
func (r *HandshakeResponse) Version() int {
	return r.Major*10 + r.Minor
}

type DigitalReadResponse struct {
	Pin   int
	Value DigitalValue
}

type DigitalWriteResponse struct {
	Pin   int
	Value DigitalValue
}

type PinModeResponse struct {
	Pin  int
	Mode PinMode
}

type AnalogReadResponse struct {
	Pin   int
	Value int
}

type AnalogWriteResponse struct {
	Pin   int
	Value int
}

type ToneResponse struct{}

type NoToneResponse struct{}

type AnalogReferenceResponse struct {
	Type AnalogReferenceType
}

type ShiftOutResponse struct {
	DataPin  int
	ClockPin int
	Order    BitOrder
	Value    byte
}

type ShiftInResponse struct {
	DataPin  int
	ClockPin int
	Order    BitOrder
	Incoming byte
}

// ErrorResponse - The listener rejected the request
type ErrorResponse struct {
	Byte1, Byte2, Byte3 byte
}

func (*HandshakeResponse) Ack() byte       { return CmdHandshakeAck }
func (*DigitalReadResponse) Ack() byte     { return CmdDigitalReadAck }
func (*DigitalWriteResponse) Ack() byte    { return CmdDigitalWriteAck }
func (*PinModeResponse) Ack() byte         { return CmdPinModeAck }
func (*AnalogReadResponse) Ack() byte      { return CmdAnalogReadAck }
func (*AnalogWriteResponse) Ack() byte     { return CmdAnalogWriteAck }
func (*ToneResponse) Ack() byte            { return CmdToneAck }
func (*NoToneResponse) Ack() byte          { return CmdNoToneAck }
func (*AnalogReferenceResponse) Ack() byte { return CmdAnalogReferenceAck }
func (*ShiftOutResponse) Ack() byte        { return CmdShiftOutAck }
func (*ShiftInResponse) Ack() byte         { return CmdShiftInAck }
func (*ErrorResponse) Ack() byte           { return CmdErrorAck }

// Minimum response lengths including the ack byte
var responseLengths = map[byte]int{
	CmdHandshakeAck:       3,
	CmdDigitalReadAck:     3,
	CmdDigitalWriteAck:    3,
	CmdPinModeAck:         3,
	CmdAnalogReadAck:      4,
	CmdAnalogWriteAck:     3,
	CmdToneAck:            1,
	CmdNoToneAck:          1,
	CmdAnalogReferenceAck: 2,
	CmdShiftOutAck:        5,
	CmdShiftInAck:         5,
	CmdErrorAck:           4,
}

// Decode - Builds the response announced by the first byte of b
func Decode(b []byte) (Response, error) {
	if len(b) == 0 {
		return nil, fault.New(fault.FramingMismatch, "empty response")
	}

	want, ok := responseLengths[b[0]]
	if !ok {
		return nil, fault.New(fault.FramingMismatch, "unknown response 0x%02X", b[0])
	}
	if len(b) < want {
		return nil, fault.New(fault.FramingMismatch, "response 0x%02X has %d bytes, want %d", b[0], len(b), want)
	}

	switch b[0] {
	case CmdHandshakeAck:
		return &HandshakeResponse{Major: int(b[1]), Minor: int(b[2])}, nil
	case CmdDigitalReadAck:
		return &DigitalReadResponse{Pin: int(b[1]), Value: DigitalValue(b[2])}, nil
	case CmdDigitalWriteAck:
		return &DigitalWriteResponse{Pin: int(b[1]), Value: DigitalValue(b[2])}, nil
	case CmdPinModeAck:
		return &PinModeResponse{Pin: int(b[1]), Mode: PinMode(b[2])}, nil
	case CmdAnalogReadAck:
		return &AnalogReadResponse{Pin: int(b[1]), Value: int(b[2])<<8 + int(b[3])}, nil
	case CmdAnalogWriteAck:
		return &AnalogWriteResponse{Pin: int(b[1]), Value: int(b[2])}, nil
	case CmdToneAck:
		return &ToneResponse{}, nil
	case CmdNoToneAck:
		return &NoToneResponse{}, nil
	case CmdAnalogReferenceAck:
		return &AnalogReferenceResponse{Type: AnalogReferenceType(b[1])}, nil
	case CmdShiftOutAck:
		return &ShiftOutResponse{DataPin: int(b[1]), ClockPin: int(b[2]), Order: BitOrder(b[3]), Value: b[4]}, nil
	case CmdShiftInAck:
		return &ShiftInResponse{DataPin: int(b[1]), ClockPin: int(b[2]), Order: BitOrder(b[3]), Incoming: b[4]}, nil
	default:
		return &ErrorResponse{Byte1: b[1], Byte2: b[2], Byte3: b[3]}, nil
	}
}
