// Package memory models the flash contents to be written to a device: a fixed
// number of cells, each holding a value and a flag telling whether the
// firmware image defined it.
package memory

import (
	"io"
	"os"

	"github.com/janch32/arduino-serial/fault"
	"github.com/marcinbor85/gohex"
)

// Fill - Value of cells not defined by an image (erased flash)
const Fill = 0xFF

// Cell - One byte of memory
type Cell struct {
	Value    byte
	Modified bool
}

// Image - Memory contents indexed 0..Size()-1
type Image struct {
	cells []Cell
}

// NewImage - Image of size cells, all holding fill and none modified
func NewImage(size int, fill byte) *Image {
	cells := make([]Cell, size)
	for i := range cells {
		cells[i].Value = fill
	}
	return &Image{cells: cells}
}

func (m *Image) Size() int {
	return len(m.cells)
}

// Cell - Cell at offset. Offsets outside the image read as an unmodified Fill.
func (m *Image) Cell(offset int) Cell {
	if offset < 0 || offset >= len(m.cells) {
		return Cell{Value: Fill}
	}
	return m.cells[offset]
}

// Set - Stores data starting at offset and marks the cells modified
func (m *Image) Set(offset int, data ...byte) error {
	if offset < 0 || offset+len(data) > len(m.cells) {
		return fault.New(fault.ConfigurationError,
			"%d bytes at offset 0x%04X do not fit in %d bytes of memory", len(data), offset, len(m.cells))
	}

	for i, b := range data {
		m.cells[offset+i] = Cell{Value: b, Modified: true}
	}
	return nil
}

// HighestModifiedOffset - Offset of the last modified cell, -1 if none is
func (m *Image) HighestModifiedOffset() int {
	for i := len(m.cells) - 1; i >= 0; i-- {
		if m.cells[i].Modified {
			return i
		}
	}
	return -1
}

// Dirty - Whether any cell in [offset, offset+length) is modified
func (m *Image) Dirty(offset, length int) bool {
	from, to := m.clip(offset, length)
	for i := from; i < to; i++ {
		if m.cells[i].Modified {
			return true
		}
	}
	return false
}

// Page - Values of [offset, offset+length), cut at the end of memory
func (m *Image) Page(offset, length int) []byte {
	from, to := m.clip(offset, length)
	res := make([]byte, 0, to-from)
	for i := from; i < to; i++ {
		res = append(res, m.cells[i].Value)
	}
	return res
}

func (m *Image) clip(offset, length int) (int, int) {
	from, to := offset, offset+length
	if from < 0 {
		from = 0
	}
	if to > len(m.cells) {
		to = len(m.cells)
	}
	if from > to {
		from = to
	}
	return from, to
}

// LoadHex - Reads Intel HEX content into an image of size bytes. Bytes not
// defined by the file hold Fill.
func LoadHex(r io.Reader, size int) (*Image, error) {
	mem := gohex.NewMemory()
	err := mem.ParseIntelHex(r)
	if err != nil {
		return nil, fault.Wrap(fault.ConfigurationError, err, "invalid Intel HEX data")
	}

	img := NewImage(size, Fill)
	for _, seg := range mem.GetDataSegments() {
		err = img.Set(int(seg.Address), seg.Data...)
		if err != nil {
			return nil, err
		}
	}

	return img, nil
}

// LoadHexFile - Reads an Intel HEX file (see LoadHex)
func LoadHexFile(path string, size int) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.ConfigurationError, err, "unable to read %s", path)
	}

	defer file.Close()

	return LoadHex(file, size)
}
