package stk500v1

import "github.com/janch32/arduino-serial/profile"

func getSyncRequest() []byte {
	return []byte{cmdGetSync, syncCrcEOP}
}

func getParameterRequest(param byte) []byte {
	return []byte{cmdGetParameter, param, syncCrcEOP}
}

// setDeviceRequest - Programming parameters of mcu, 22 bytes
func setDeviceRequest(mcu *profile.MCU) []byte {
	fl, ee := mcu.Flash, mcu.Eeprom
	return []byte{
		cmdSetDevice,
		mcu.DeviceCode,
		mcu.DeviceRevision,
		mcu.ProgType,
		mcu.ParallelMode,
		mcu.Polling,
		mcu.SelfTimed,
		mcu.LockBytes,
		mcu.FuseBytes,
		fl.PollVal1,
		fl.PollVal2,
		ee.PollVal1,
		ee.PollVal2,
		byte(fl.PageSize >> 8), byte(fl.PageSize),
		byte(ee.Size >> 8), byte(ee.Size),
		byte(fl.Size >> 24), byte(fl.Size >> 16), byte(fl.Size >> 8), byte(fl.Size),
		syncCrcEOP,
	}
}

func enterProgmodeRequest() []byte {
	return []byte{cmdEnterProgmode, syncCrcEOP}
}

func leaveProgmodeRequest() []byte {
	return []byte{cmdLeaveProgmode, syncCrcEOP}
}

func readSignatureRequest() []byte {
	return []byte{cmdReadSign, syncCrcEOP}
}

// loadAddressRequest - addr is a word address, sent low byte first
func loadAddressRequest(addr int) []byte {
	return []byte{cmdLoadAddress, byte(addr), byte(addr >> 8), syncCrcEOP}
}

func progPageRequest(mem profile.MemoryType, data []byte) []byte {
	req := make([]byte, 0, len(data)+5)
	req = append(req, cmdProgPage, byte(len(data)>>8), byte(len(data)), byte(mem))
	req = append(req, data...)
	return append(req, syncCrcEOP)
}

func readPageRequest(mem profile.MemoryType, pageSize int) []byte {
	return []byte{cmdReadPage, byte(pageSize >> 8), byte(pageSize), byte(mem), syncCrcEOP}
}
