package bootloader

import (
	"github.com/janch32/arduino-serial/fault"
	"github.com/janch32/arduino-serial/memory"
	"github.com/janch32/arduino-serial/profile"
	"github.com/rs/zerolog"
)

// uploadSize - Bytes covered by the program and verify passes
func uploadSize(img *memory.Image) int {
	return img.HighestModifiedOffset() + 1
}

// ProgramDevice - Writes every dirty page up to the highest modified
// offset. Clean pages are not touched.
func ProgramDevice(p Programmer, img *memory.Image, mem profile.Memory, progress Progress, log zerolog.Logger) error {
	size := uploadSize(img)
	pageSize := mem.PageSize
	if pageSize <= 0 {
		return fault.New(fault.ConfigurationError, "invalid page size %d", pageSize)
	}

	log.Info().Int("bytes", size).Int("page", pageSize).Msg("programming")

	for offset := 0; offset < size; offset += pageSize {
		if !img.Dirty(offset, pageSize) {
			log.Trace().Int("offset", offset).Msg("skip clean page")
			continue
		}

		log.Debug().Int("offset", offset).Msg("write page")
		if err := p.LoadAddress(mem, offset); err != nil {
			return err
		}
		if err := p.ExecuteWritePage(mem, offset, img.Page(offset, pageSize)); err != nil {
			return err
		}

		if progress != nil {
			progress(float64(offset) / float64(2*size))
		}
	}
	return nil
}

// VerifyProgram - Reads back every page of the programmed range and stops
// at the first byte that differs.
func VerifyProgram(p Programmer, img *memory.Image, mem profile.Memory, progress Progress, log zerolog.Logger) error {
	size := uploadSize(img)
	pageSize := mem.PageSize
	if pageSize <= 0 {
		return fault.New(fault.ConfigurationError, "invalid page size %d", pageSize)
	}

	log.Info().Int("bytes", size).Msg("verifying")

	for offset := 0; offset < size; offset += pageSize {
		log.Debug().Int("offset", offset).Msg("read page")
		if err := p.LoadAddress(mem, offset); err != nil {
			return err
		}
		got, err := p.ExecuteReadPage(mem)
		if err != nil {
			return err
		}

		want := img.Page(offset, pageSize)
		if len(got) != len(want) {
			return fault.New(fault.VerificationMismatch, "page at 0x%04X: read %d bytes, want %d", offset, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				return fault.New(fault.VerificationMismatch, "offset 0x%04X: read 0x%02X, want 0x%02X", offset+i, got[i], want[i])
			}
		}

		if progress != nil {
			progress(float64(size+offset) / float64(2*size))
		}
	}

	if progress != nil {
		progress(1)
	}
	return nil
}
