package procon

import "math"

// Calibration describes one analog stick in raw 12-bit units. Min and max are
// offsets from the center; min values are negative.
type Calibration struct {
	CenterX, CenterY int
	MinX, MinY       int
	MaxX, MaxY       int
}

// Factory calibration written to the virtual SPI flash and used for encoding.
var (
	LeftStickCalibration = Calibration{
		CenterX: 2159, CenterY: 1916,
		MinX: -1466, MinY: -1583,
		MaxX: 1517, MaxY: 1465,
	}
	RightStickCalibration = Calibration{
		CenterX: 2070, CenterY: 2013,
		MinX: -1522, MinY: -1531,
		MaxX: 1414, MaxY: 1510,
	}
)

// StickRange is the magnitude of the full deflection accepted by Encode.
const StickRange = 100

// Encode converts a position in -StickRange..StickRange on each axis into the
// packed 3-byte report form. Out of range values are clamped.
func (c Calibration) Encode(x, y int) [3]byte {
	rx := scaleAxis(x, c.CenterX, c.MinX, c.MaxX)
	ry := scaleAxis(y, c.CenterY, c.MinY, c.MaxY)
	return pack12(rx, ry)
}

// Center returns the packed form of the resting position.
func (c Calibration) Center() [3]byte {
	return pack12(c.CenterX, c.CenterY)
}

// Decode unpacks a 3-byte stick field into raw 12-bit axis values.
func Decode(b [3]byte) (x, y int) {
	x = int(b[0]) | int(b[1]&0x0F)<<8
	y = int(b[1]>>4) | int(b[2])<<4
	return x, y
}

func scaleAxis(v, center, lo, hi int) int {
	if v > StickRange {
		v = StickRange
	}
	if v < -StickRange {
		v = -StickRange
	}
	f := float64(v) / StickRange
	var raw float64
	if f < 0 {
		raw = math.Abs(f)*float64(lo) + float64(center)
	} else {
		raw = f*float64(hi) + float64(center)
	}
	return int(math.Round(raw))
}

func pack12(x, y int) [3]byte {
	x &= 0xFFF
	y &= 0xFFF
	return [3]byte{
		byte(x & 0xFF),
		byte((y&0xF)<<4 | (x>>8)&0xF),
		byte(y >> 4),
	}
}

// factoryBytes returns the 9-byte factory calibration block. The left stick
// stores max, center, min; the right stick stores center, min, max.
func (c Calibration) factoryBytes(left bool) [9]byte {
	maxB := pack12(c.MaxX, c.MaxY)
	center := pack12(c.CenterX, c.CenterY)
	minB := pack12(-c.MinX, -c.MinY)

	var out [9]byte
	order := [3][3]byte{center, minB, maxB}
	if left {
		order = [3][3]byte{maxB, center, minB}
	}
	for i, part := range order {
		copy(out[i*3:], part[:])
	}
	return out
}
