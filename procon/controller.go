// Package procon emulates the input side of a Pro Controller: it owns the
// mutable input fields, builds input reports and answers host subcommands.
package procon

import (
	"bytes"
	"sync"

	"github.com/sanjay900/joybridge/state"
)

// InputFields is the controller input carried in every report. The pacer
// merges external input into it before each report is built.
type InputFields struct {
	Buttons    [3]byte
	LeftStick  [3]byte
	RightStick [3]byte
	IMU        [state.IMUSize]byte
}

// FeedbackKind names a host-to-controller event forwarded to producers.
type FeedbackKind string

const (
	FeedbackRumble       FeedbackKind = "rumble"
	FeedbackPlayerLights FeedbackKind = "playerLights"
	FeedbackIMU          FeedbackKind = "imu"
	FeedbackInputMode    FeedbackKind = "inputMode"
)

// Feedback is emitted when the host changes rumble, player lights, IMU or input mode.
type Feedback struct {
	Kind   FeedbackKind `json:"kind"`
	Value  int          `json:"value"`
	Rumble []byte       `json:"rumble,omitempty"`
}

// Options configure the identity the controller reports to the host.
type Options struct {
	// Address is the adapter address reported in device info, most significant byte first.
	Address [6]byte
	Colours Colours
}

// Controller is driven from a single goroutine. Only the status getters may
// be called concurrently with it.
type Controller struct {
	fields InputFields
	opts   Options
	spi    *flash

	timer   byte
	pending []byte
	last    *InputReport
	rumble  [8]byte

	mu           sync.Mutex
	inputMode    InputMode
	playerLights byte
	imuEnabled   bool
	vibration    bool
	feedbackFunc func(Feedback)
}

// New returns a controller with neutral input and centered sticks.
func New(opts Options) *Controller {
	if opts.Colours == (Colours{}) {
		opts.Colours = DefaultColours
	}
	c := &Controller{
		opts:      opts,
		spi:       newFlash(opts.Colours),
		inputMode: InputStandard,
	}
	c.fields.LeftStick = LeftStickCalibration.Center()
	c.fields.RightStick = RightStickCalibration.Center()
	return c
}

// SetFeedbackCallback sets a callback invoked from ProcessCommands when host feedback changes.
func (c *Controller) SetFeedbackCallback(f func(Feedback)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feedbackFunc = f
}

// Fields returns the mutable input fields.
func (c *Controller) Fields() *InputFields { return &c.fields }

// ApplyDirectInput replaces buttons and sticks with an explicit state.
// Unknown button names are ignored.
func (c *Controller) ApplyDirectInput(in state.DirectInput) {
	c.fields.Buttons, _ = PackButtons(in.Buttons)
	c.fields.LeftStick = LeftStickCalibration.Encode(in.LeftStick.X, in.LeftStick.Y)
	c.fields.RightStick = RightStickCalibration.Encode(in.RightStick.X, in.RightStick.Y)
}

// InputMode returns the report mode last requested by the host.
func (c *Controller) InputMode() InputMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputMode
}

// PlayerLights returns the player light pattern last set by the host.
func (c *Controller) PlayerLights() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerLights
}

// IMUEnabled reports whether the host enabled the motion sensors.
func (c *Controller) IMUEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imuEnabled
}

// ProcessCommands handles one host output report. A nil or unrecognized
// message is ignored. A subcommand makes the next Report a reply to it.
func (c *Controller) ProcessCommands(msg []byte) {
	if len(msg) < 2 || msg[0] != OutputPrefix {
		return
	}
	switch msg[1] {
	case OutputRumbleOnly:
		if len(msg) >= 11 {
			c.setRumble(msg[3:11])
		}
	case OutputRumbleCommand:
		if len(msg) < 12 {
			return
		}
		c.setRumble(msg[3:11])
		c.pending = c.subcommand(msg[11], msg[12:])
	}
}

// Report builds the next input report. The returned slice is valid until the
// next call to Report.
func (c *Controller) Report() []byte {
	if c.last != nil {
		FreeReport(c.last)
	}
	r := AllocReport()
	c.last = r
	b := *r

	c.timer++
	b[offTimer] = c.timer
	b[offConnInfo] = connInfo
	copy(b[offButtons:], c.fields.Buttons[:])
	copy(b[offLeftStick:], c.fields.LeftStick[:])
	copy(b[offRightStick:], c.fields.RightStick[:])
	b[offVibrator] = vibratorNeutral

	if c.pending != nil {
		b[offID] = ReportSubcommand
		copy(b[offAck:], c.pending)
		c.pending = nil
		return b
	}
	b[offID] = ReportStandard
	copy(b[offIMU:], c.fields.IMU[:])
	return b
}

// subcommand returns the reply body: ack, subcommand id, data.
func (c *Controller) subcommand(id byte, args []byte) []byte {
	reply := func(ack byte, data ...byte) []byte {
		return append([]byte{ack, id}, data...)
	}
	switch id {
	case SubcmdDeviceInfo:
		a := c.opts.Address
		return reply(0x82, firmwareMajor, firmwareMinor, controllerType, 0x02,
			a[0], a[1], a[2], a[3], a[4], a[5], 0x01, 0x01)
	case SubcmdSetInputMode:
		if len(args) > 0 {
			c.update(func() Feedback {
				c.inputMode = InputMode(args[0])
				return Feedback{Kind: FeedbackInputMode, Value: int(args[0])}
			})
		}
		return reply(0x80)
	case SubcmdTriggerElapsed:
		return reply(0x83)
	case SubcmdShipmentState:
		return reply(0x80)
	case SubcmdSPIRead:
		return reply(0x90, c.spi.read(args)...)
	case SubcmdMCUConfig:
		return reply(0xA0, 0x01, 0x00, 0xFF, 0x00, 0x03, 0x00, 0x05, 0x01)
	case SubcmdMCUState:
		return reply(0x80)
	case SubcmdPlayerLights:
		if len(args) > 0 {
			c.update(func() Feedback {
				c.playerLights = args[0]
				return Feedback{Kind: FeedbackPlayerLights, Value: int(args[0])}
			})
		}
		return reply(0x80)
	case SubcmdHomeLight:
		return reply(0x80)
	case SubcmdIMUEnable:
		if len(args) > 0 {
			c.update(func() Feedback {
				c.imuEnabled = args[0] == 0x01
				return Feedback{Kind: FeedbackIMU, Value: int(args[0])}
			})
		}
		return reply(0x80)
	case SubcmdVibrationEnable:
		if len(args) > 0 {
			c.mu.Lock()
			c.vibration = args[0] == 0x01
			c.mu.Unlock()
		}
		return reply(0x82)
	}
	return reply(0x80)
}

// update applies fn under the status lock and delivers its feedback afterwards.
func (c *Controller) update(fn func() Feedback) {
	c.mu.Lock()
	fb := fn()
	cb := c.feedbackFunc
	c.mu.Unlock()
	if cb != nil {
		cb(fb)
	}
}

func (c *Controller) setRumble(data []byte) {
	if bytes.Equal(c.rumble[:], data) {
		return
	}
	copy(c.rumble[:], data)
	c.mu.Lock()
	cb := c.feedbackFunc
	enabled := c.vibration
	c.mu.Unlock()
	if cb != nil && enabled {
		cb(Feedback{Kind: FeedbackRumble, Rumble: bytes.Clone(data)})
	}
}
