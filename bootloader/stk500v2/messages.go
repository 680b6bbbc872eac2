package stk500v2

import (
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/profile"
)

const programPageMode = 0xC1

// Frame - Wraps body into 1B seq sizeHi sizeLo 0E body checksum
func Frame(seq byte, body []byte) []byte {
	msg := make([]byte, 0, len(body)+6)
	msg = append(msg, MessageStart, seq, byte(len(body)>>8), byte(len(body)), Token)
	msg = append(msg, body...)
	return append(msg, Checksum(msg))
}

// Checksum - XOR of all bytes
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// Unframe - Body of a complete message, checking start, token and checksum
func Unframe(msg []byte) (seq byte, body []byte, err error) {
	if len(msg) < 6 || msg[0] != MessageStart || msg[4] != Token {
		return 0, nil, fault.New(fault.FramingMismatch, "malformed message % X", msg)
	}

	size := int(msg[2])<<8 | int(msg[3])
	if len(msg) != size+6 {
		return 0, nil, fault.New(fault.FramingMismatch, "message length %d, header says %d", len(msg)-6, size)
	}
	if sum := Checksum(msg[:len(msg)-1]); sum != msg[len(msg)-1] {
		return 0, nil, fault.New(fault.FramingMismatch, "checksum 0x%02X, want 0x%02X", msg[len(msg)-1], sum)
	}
	return msg[1], msg[5 : 5+size], nil
}

func signOnRequest() []byte {
	return []byte{CmdSignOn}
}

func getParameterRequest(param byte) []byte {
	return []byte{CmdGetParameter, param}
}

// spiSignatureRequest - Reads signature byte i through the ISP "read
// signature" instruction 30 00 i 00
func spiSignatureRequest(i byte) []byte {
	return []byte{CmdSpiMulti, 4, 4, 0, 0x30, 0x00, i, 0x00}
}

func enterProgmodeRequest(mcu *profile.MCU) []byte {
	pgm := mcu.Commands[profile.PgmEnable]
	return []byte{
		CmdEnterProgmodeIsp,
		mcu.Timeout,
		mcu.StabDelay,
		mcu.CmdExeDelay,
		mcu.SynchLoops,
		mcu.ByteDelay,
		mcu.PollValue,
		mcu.PollIndex,
		pgm[0], pgm[1], pgm[2], pgm[3],
	}
}

func leaveProgmodeRequest() []byte {
	return []byte{CmdLeaveProgmodeIsp, 1, 1}
}

// loadAddressRequest - Flash addresses carry the 0x80 flag in the top byte
func loadAddressRequest(mem profile.Memory, addr int) []byte {
	var modifier byte
	if mem.Type == profile.Flash {
		modifier = 0x80
	}
	return []byte{
		CmdLoadAddress,
		byte(addr>>24) | modifier,
		byte(addr >> 16),
		byte(addr >> 8),
		byte(addr),
	}
}

func programPageRequest(mem profile.Memory, data []byte) []byte {
	cmd := CmdProgramFlashIsp
	if mem.Type == profile.Eeprom {
		cmd = CmdProgramEepromIsp
	}

	req := []byte{
		cmd,
		byte(len(data) >> 8),
		byte(len(data)),
		programPageMode,
		mem.Delay,
		mem.CmdBytesWrite[0],
		mem.CmdBytesWrite[1],
		mem.CmdBytesRead[0],
		mem.PollVal1,
		mem.PollVal2,
	}
	return append(req, data...)
}

func readPageRequest(mem profile.Memory) []byte {
	cmd := CmdReadFlashIsp
	if mem.Type == profile.Eeprom {
		cmd = CmdReadEepromIsp
	}
	return []byte{cmd, byte(mem.PageSize >> 8), byte(mem.PageSize), mem.CmdBytesRead[0]}
}
