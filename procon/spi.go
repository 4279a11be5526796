package procon

import "encoding/binary"

// Addresses inside the virtual SPI flash read by the host during pairing.
const (
	spiSize         = 0x10000
	spiFactoryIMU   = 0x6020
	spiFactoryLeft  = 0x603D
	spiFactoryRight = 0x6046
	spiColours      = 0x6050
	spiIMUParams    = 0x6080
	spiStickParams  = 0x6086
	spiMaxRead      = 0x1D
)

// Colours are the body, button and grip colours reported to the host.
type Colours struct {
	Body      [3]byte
	Buttons   [3]byte
	LeftGrip  [3]byte
	RightGrip [3]byte
}

// DefaultColours matches a stock grey Pro Controller.
var DefaultColours = Colours{
	Body:      [3]byte{0x32, 0x32, 0x32},
	Buttons:   [3]byte{0xFF, 0xFF, 0xFF},
	LeftGrip:  [3]byte{0x32, 0x32, 0x32},
	RightGrip: [3]byte{0x32, 0x32, 0x32},
}

var factoryIMU = [24]byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // accelerometer origin
	0x00, 0x40, 0x00, 0x40, 0x00, 0x40, // accelerometer sensitivity
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // gyro origin
	0x3B, 0x34, 0x3B, 0x34, 0x3B, 0x34, // gyro sensitivity
}

var imuParams = [6]byte{0x50, 0xFD, 0x00, 0x00, 0xC6, 0x0F}

var stickParams = [18]byte{
	0x0F, 0x30, 0x61, 0x96, 0x30, 0xF3, 0xD4, 0x14, 0x54,
	0x41, 0x15, 0x54, 0xC7, 0x79, 0x9C, 0x33, 0x36, 0x63,
}

// flash is an erased SPI image populated with factory data only. The serial
// number and user calibration areas stay erased.
type flash [spiSize]byte

func newFlash(c Colours) *flash {
	f := new(flash)
	for i := range f {
		f[i] = 0xFF
	}
	copy(f[spiFactoryIMU:], factoryIMU[:])
	left := LeftStickCalibration.factoryBytes(true)
	right := RightStickCalibration.factoryBytes(false)
	copy(f[spiFactoryLeft:], left[:])
	copy(f[spiFactoryRight:], right[:])
	copy(f[spiColours:], c.Body[:])
	copy(f[spiColours+3:], c.Buttons[:])
	copy(f[spiColours+6:], c.LeftGrip[:])
	copy(f[spiColours+9:], c.RightGrip[:])
	copy(f[spiIMUParams:], imuParams[:])
	copy(f[spiStickParams:], stickParams[:])
	copy(f[spiStickParams+len(stickParams):], stickParams[:])
	return f
}

// read answers an SPI read subcommand. The reply echoes the address and
// length followed by the data; reads past the end return erased bytes.
func (f *flash) read(args []byte) []byte {
	if len(args) < 5 {
		return nil
	}
	addr := binary.LittleEndian.Uint32(args[0:4])
	n := int(args[4])
	if n > spiMaxRead {
		n = spiMaxRead
	}
	out := make([]byte, 5+n)
	copy(out, args[:5])
	out[4] = byte(n)
	for i := 0; i < n; i++ {
		a := int(addr) + i
		if a < 0 || a >= spiSize {
			out[5+i] = 0xFF
			continue
		}
		out[5+i] = f[a]
	}
	return out
}
