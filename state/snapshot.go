package state

// FieldMask marks which snapshot fields were supplied by the producer.
type FieldMask uint8

const (
	FieldButtons FieldMask = 1 << iota
	FieldLeftStick
	FieldRightStick
	FieldIMU
)

// IMUSize is the length of the three 12-byte accelerometer/gyro samples carried per report.
const IMUSize = 36

// Snapshot is the latest externally supplied input. It is a plain value so a copy
// taken under the state lock can never alias a later write.
//
// Only fields whose bit is set in Present are merged into the outgoing report;
// the rest leave the protocol's own values untouched.
type Snapshot struct {
	Present    FieldMask
	Buttons    [3]byte
	LeftStick  [3]byte
	RightStick [3]byte
	IMU        [IMUSize]byte
}

// Has reports whether every field in m is present.
func (s Snapshot) Has(m FieldMask) bool {
	return s.Present&m == m
}

// StickInput is a stick position in the range -100..100 on each axis.
type StickInput struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DirectInput is an explicitly injected controller state that overrides the
// button and stick fields of the snapshot while it is set.
type DirectInput struct {
	Buttons    []string   `json:"buttons,omitempty"`
	LeftStick  StickInput `json:"leftStick"`
	RightStick StickInput `json:"rightStick"`
}

func (d DirectInput) clone() DirectInput {
	out := d
	out.Buttons = append([]string(nil), d.Buttons...)
	return out
}
