package stk500v1

const (
	cmdGetSync       byte = 0x30
	cmdGetParameter  byte = 0x41
	cmdSetDevice     byte = 0x42
	cmdEnterProgmode byte = 0x50
	cmdLeaveProgmode byte = 0x51
	cmdLoadAddress   byte = 0x55
	cmdProgPage      byte = 0x64
	cmdReadPage      byte = 0x74
	cmdReadSign      byte = 0x75

	syncCrcEOP byte = 0x20

	respOK       byte = 0x10
	respFailed   byte = 0x11
	respUnknown  byte = 0x12
	respNoDevice byte = 0x13
	respInSync   byte = 0x14
	respNoSync   byte = 0x15

	parmSwMajor byte = 0x81
	parmSwMinor byte = 0x82
)
