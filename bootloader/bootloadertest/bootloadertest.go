// Package bootloadertest simulates bootloaders behind a transporttest.Port.
// Each host write is expected to carry one complete command.
package bootloadertest

import (
	"bytes"

	"github.com/janch32/arduino-serial/profile"
)

// Flash - Device side flash shared by the simulators
type Flash struct {
	Signature []byte
	Memory    []byte
	addr      int
	// Corrupt makes the byte at this offset read back wrong; -1 disables
	Corrupt int
	// Commands holds the first byte of every host command
	Commands []byte
}

func newFlash(mcu *profile.MCU) Flash {
	sig, _ := mcu.SignatureBytes()
	return Flash{
		Signature: sig,
		Memory:    bytes.Repeat([]byte{0xFF}, mcu.Flash.Size),
		Corrupt:   -1,
	}
}

func (f *Flash) read(n int) []byte {
	page := append([]byte(nil), f.Memory[f.addr:f.addr+n]...)
	if f.Corrupt >= f.addr && f.Corrupt < f.addr+n {
		page[f.Corrupt-f.addr]++
	}
	return page
}

// Count - How many commands started with cmd
func (f *Flash) Count(cmd byte) int {
	return bytes.Count(f.Commands, []byte{cmd})
}

// Optiboot - STK500v1 bootloader
type Optiboot struct {
	Flash
	// NoSync is the number of commands other than GET_SYNC answered with
	// NOSYNC before the device behaves again
	NoSync int
	Silent     bool
	Major      byte
	Minor      byte
}

func NewOptiboot(mcu *profile.MCU) *Optiboot {
	return &Optiboot{Flash: newFlash(mcu), Major: 4, Minor: 4}
}

const (
	stkInSync  = 0x14
	stkNoSync  = 0x15
	stkOK      = 0x10
	stkUnknown = 0x12
)

func (o *Optiboot) Respond(w []byte) []byte {
	o.Commands = append(o.Commands, w[0])
	if o.Silent {
		return nil
	}
	if w[0] != 0x30 && o.NoSync > 0 {
		o.NoSync--
		return []byte{stkNoSync}
	}

	switch w[0] {
	case 0x30, 0x42, 0x50, 0x51:
		return []byte{stkInSync, stkOK}
	case 0x41:
		v := o.Major
		if w[1] == 0x82 {
			v = o.Minor
		}
		return []byte{stkInSync, v, stkOK}
	case 0x75:
		return append(append([]byte{stkInSync}, o.Signature...), stkOK)
	case 0x55:
		o.addr = (int(w[1]) | int(w[2])<<8) * 2
		return []byte{stkInSync, stkOK}
	case 0x64:
		n := int(w[1])<<8 | int(w[2])
		copy(o.Memory[o.addr:], w[4:4+n])
		return []byte{stkInSync, stkOK}
	case 0x74:
		n := int(w[1])<<8 | int(w[2])
		return append(append([]byte{stkInSync}, o.read(n)...), stkOK)
	}
	return []byte{stkInSync, stkUnknown}
}

// Caterina - AVR109 bootloader
type Caterina struct {
	Flash
	DeviceCodes []byte
	Selected    byte
}

func NewCaterina(mcu *profile.MCU) *Caterina {
	return &Caterina{Flash: newFlash(mcu), DeviceCodes: []byte{mcu.DeviceCode}}
}

func (c *Caterina) Respond(w []byte) []byte {
	c.Commands = append(c.Commands, w[0])

	switch w[0] {
	case 'S':
		return []byte("CATERIN")
	case 'V':
		return []byte("10")
	case 'p':
		return []byte{'S'}
	case 'a':
		return []byte{'Y'}
	case 'b':
		return []byte{'Y', 0x00, 0x80}
	case 't':
		return append(append([]byte(nil), c.DeviceCodes...), 0x00)
	case 'T':
		c.Selected = w[1]
	case 's':
		return []byte{c.Signature[2], c.Signature[1], c.Signature[0]}
	case 'A':
		c.addr = (int(w[1])<<8 | int(w[2])) * 2
	case 'B':
		n := int(w[1])<<8 | int(w[2])
		copy(c.Memory[c.addr:], w[4:4+n])
		c.addr += n
	case 'g':
		n := int(w[1])<<8 | int(w[2])
		page := c.read(n)
		c.addr += n
		return page
	}
	return []byte{0x0D}
}
