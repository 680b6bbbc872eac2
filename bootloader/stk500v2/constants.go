package stk500v2

const (
	MessageStart byte = 0x1B
	Token        byte = 0x0E

	CmdSignOn           byte = 0x01
	CmdGetParameter     byte = 0x03
	CmdLoadAddress      byte = 0x06
	CmdEnterProgmodeIsp byte = 0x10
	CmdLeaveProgmodeIsp byte = 0x11
	CmdProgramFlashIsp  byte = 0x13
	CmdReadFlashIsp     byte = 0x14
	CmdProgramEepromIsp byte = 0x15
	CmdReadEepromIsp    byte = 0x16
	CmdSpiMulti         byte = 0x1D

	StatusCmdOK byte = 0x00

	ParamHwVer   byte = 0x90
	ParamSwMajor byte = 0x91
	ParamSwMinor byte = 0x92
)
