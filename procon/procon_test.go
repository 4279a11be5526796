package procon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjay900/joybridge/procon"
	"github.com/sanjay900/joybridge/state"
)

func subcommandMsg(id byte, args ...byte) []byte {
	msg := []byte{procon.OutputPrefix, procon.OutputRumbleCommand, 0x00,
		0x00, 0x01, 0x40, 0x40, 0x00, 0x01, 0x40, 0x40, id}
	return append(msg, args...)
}

func TestPackButtons(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    [3]byte
		unknown []string
	}{
		{name: "none", want: [3]byte{}},
		{name: "A", in: []string{"A"}, want: [3]byte{procon.ButtonA, 0, 0}},
		{name: "mixed case", in: []string{"home", "Zl"}, want: [3]byte{0, procon.ButtonHome, procon.ButtonZL}},
		{name: "side buttons", in: []string{"JCR_SR", "JCL_SL"}, want: [3]byte{procon.ButtonRSR, 0, procon.ButtonLSL}},
		{name: "unknown", in: []string{"A", "TURBO"}, want: [3]byte{procon.ButtonA, 0, 0}, unknown: []string{"TURBO"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unknown := procon.PackButtons(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.unknown, unknown)
		})
	}
}

func TestUnpackButtonsRoundTrip(t *testing.T) {
	packed, _ := procon.PackButtons(procon.ButtonNames)
	assert.Equal(t, [3]byte{0xFF, 0x3F, 0xFF}, packed)
	assert.Equal(t, procon.ButtonNames, procon.UnpackButtons(packed))
}

func TestStickEncode(t *testing.T) {
	cal := procon.LeftStickCalibration
	tests := []struct {
		name  string
		x, y  int
		wantX int
		wantY int
	}{
		{name: "center", x: 0, y: 0, wantX: 2159, wantY: 1916},
		{name: "full right up", x: 100, y: 100, wantX: 2159 + 1517, wantY: 1916 + 1465},
		{name: "full left down", x: -100, y: -100, wantX: 2159 - 1466, wantY: 1916 - 1583},
		{name: "clamped", x: 500, y: -500, wantX: 2159 + 1517, wantY: 1916 - 1583},
		{name: "half", x: 50, y: -50, wantX: 2159 + 759, wantY: 1916 - 791},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := procon.Decode(cal.Encode(tt.x, tt.y))
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}
}

func TestStickPacking(t *testing.T) {
	// 2159 = 0x86F, 1916 = 0x77C
	assert.Equal(t, [3]byte{0x6F, 0xC8, 0x77}, procon.LeftStickCalibration.Center())
}

func TestStandardReport(t *testing.T) {
	c := procon.New(procon.Options{})
	c.Fields().Buttons = [3]byte{procon.ButtonA, 0, 0}
	c.Fields().IMU[0] = 0x42

	r := procon.InputReport(c.Report())
	require.Len(t, r, procon.ReportSize)
	assert.Equal(t, byte(procon.InputPrefix), r[0])
	assert.Equal(t, byte(procon.ReportStandard), r.ID())
	assert.Equal(t, byte(1), r.Timer())
	assert.Equal(t, byte(0x90), r[3])
	assert.Equal(t, [3]byte{procon.ButtonA, 0, 0}, r.Buttons())
	assert.Equal(t, procon.LeftStickCalibration.Center(), r.LeftStick())
	assert.Equal(t, procon.RightStickCalibration.Center(), r.RightStick())
	assert.Equal(t, byte(0x42), r[14])

	r2 := procon.InputReport(c.Report())
	assert.Equal(t, byte(2), r2.Timer())
}

func TestUnchangedInputHasStableBody(t *testing.T) {
	c := procon.New(procon.Options{})
	first := append([]byte(nil), c.Report()...)
	second := c.Report()
	assert.NotEqual(t, first[procon.HeaderSize-1], second[procon.HeaderSize-1])
	assert.Equal(t, first[procon.HeaderSize:], second[procon.HeaderSize:])
}

func TestSubcommandReplies(t *testing.T) {
	tests := []struct {
		name string
		id   byte
		args []byte
		ack  byte
		data []byte
	}{
		{name: "set input mode", id: procon.SubcmdSetInputMode, args: []byte{0x30}, ack: 0x80},
		{name: "trigger elapsed", id: procon.SubcmdTriggerElapsed, ack: 0x83},
		{name: "shipment", id: procon.SubcmdShipmentState, args: []byte{0x00}, ack: 0x80},
		{name: "mcu config", id: procon.SubcmdMCUConfig, args: []byte{0x21}, ack: 0xA0, data: []byte{0x01, 0x00, 0xFF, 0x00, 0x03, 0x00, 0x05, 0x01}},
		{name: "mcu state", id: procon.SubcmdMCUState, args: []byte{0x01}, ack: 0x80},
		{name: "player lights", id: procon.SubcmdPlayerLights, args: []byte{0x01}, ack: 0x80},
		{name: "home light", id: procon.SubcmdHomeLight, ack: 0x80},
		{name: "imu", id: procon.SubcmdIMUEnable, args: []byte{0x01}, ack: 0x80},
		{name: "vibration", id: procon.SubcmdVibrationEnable, args: []byte{0x01}, ack: 0x82},
		{name: "unknown", id: 0x7E, ack: 0x80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := procon.New(procon.Options{})
			c.ProcessCommands(subcommandMsg(tt.id, tt.args...))

			r := procon.InputReport(c.Report())
			assert.Equal(t, byte(procon.ReportSubcommand), r.ID())
			assert.Equal(t, tt.ack, r.Ack())
			assert.Equal(t, tt.id, r.ReplyTo())
			if tt.data != nil {
				assert.Equal(t, tt.data, r.ReplyData()[:len(tt.data)])
			}

			next := procon.InputReport(c.Report())
			assert.Equal(t, byte(procon.ReportStandard), next.ID())
		})
	}
}

func TestDeviceInfo(t *testing.T) {
	addr := [6]byte{0x98, 0xB6, 0xE9, 0x01, 0x02, 0x03}
	c := procon.New(procon.Options{Address: addr})
	c.ProcessCommands(subcommandMsg(procon.SubcmdDeviceInfo))

	r := procon.InputReport(c.Report())
	assert.Equal(t, byte(0x82), r.Ack())
	data := r.ReplyData()
	assert.Equal(t, byte(0x03), data[2])
	assert.Equal(t, addr[:], data[4:10])
}

func TestSPIRead(t *testing.T) {
	c := procon.New(procon.Options{Colours: procon.Colours{
		Body:    [3]byte{0x11, 0x22, 0x33},
		Buttons: [3]byte{0x44, 0x55, 0x66},
	}})

	c.ProcessCommands(subcommandMsg(procon.SubcmdSPIRead, 0x50, 0x60, 0x00, 0x00, 0x06))
	r := procon.InputReport(c.Report())
	assert.Equal(t, byte(0x90), r.Ack())
	assert.Equal(t, []byte{0x50, 0x60, 0x00, 0x00, 0x06, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}, r.ReplyData()[:11])

	// erased user calibration
	c.ProcessCommands(subcommandMsg(procon.SubcmdSPIRead, 0x10, 0x80, 0x00, 0x00, 0x02))
	r = procon.InputReport(c.Report())
	assert.Equal(t, []byte{0xFF, 0xFF}, r.ReplyData()[5:7])

	// factory left stick center follows the calibration
	c.ProcessCommands(subcommandMsg(procon.SubcmdSPIRead, 0x40, 0x60, 0x00, 0x00, 0x03))
	r = procon.InputReport(c.Report())
	assert.Equal(t, procon.LeftStickCalibration.Center(), [3]byte(r.ReplyData()[5:8]))
}

func TestHostStateAndFeedback(t *testing.T) {
	c := procon.New(procon.Options{})
	var got []procon.Feedback
	c.SetFeedbackCallback(func(f procon.Feedback) { got = append(got, f) })

	c.ProcessCommands(subcommandMsg(procon.SubcmdPlayerLights, 0x03))
	c.ProcessCommands(subcommandMsg(procon.SubcmdIMUEnable, 0x01))
	c.ProcessCommands(subcommandMsg(procon.SubcmdSetInputMode, 0x30))
	c.ProcessCommands(subcommandMsg(procon.SubcmdVibrationEnable, 0x01))

	rumble := []byte{procon.OutputPrefix, procon.OutputRumbleOnly, 0x01, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80}
	c.ProcessCommands(rumble)
	c.ProcessCommands(rumble)

	assert.Equal(t, byte(0x03), c.PlayerLights())
	assert.True(t, c.IMUEnabled())
	assert.Equal(t, procon.InputStandard, c.InputMode())

	require.Len(t, got, 4)
	assert.Equal(t, procon.FeedbackPlayerLights, got[0].Kind)
	assert.Equal(t, 3, got[0].Value)
	assert.Equal(t, procon.FeedbackIMU, got[1].Kind)
	assert.Equal(t, procon.FeedbackInputMode, got[2].Kind)
	assert.Equal(t, procon.FeedbackRumble, got[3].Kind)
	assert.Equal(t, rumble[3:11], got[3].Rumble)
}

func TestProcessCommandsIgnoresNoise(t *testing.T) {
	c := procon.New(procon.Options{})
	c.ProcessCommands(nil)
	c.ProcessCommands([]byte{0x00})
	c.ProcessCommands([]byte{0xA1, 0x30, 0x00})
	c.ProcessCommands([]byte{procon.OutputPrefix, procon.OutputRumbleCommand, 0x00})

	r := procon.InputReport(c.Report())
	assert.Equal(t, byte(procon.ReportStandard), r.ID())
}

func TestApplyDirectInput(t *testing.T) {
	c := procon.New(procon.Options{})
	c.ApplyDirectInput(state.DirectInput{
		Buttons:    []string{"A", "ZL"},
		LeftStick:  state.StickInput{X: 100, Y: 0},
		RightStick: state.StickInput{X: 0, Y: -100},
	})

	f := c.Fields()
	assert.Equal(t, [3]byte{procon.ButtonA, 0, procon.ButtonZL}, f.Buttons)
	assert.Equal(t, procon.LeftStickCalibration.Encode(100, 0), f.LeftStick)
	assert.Equal(t, procon.RightStickCalibration.Encode(0, -100), f.RightStick)

	c.ApplyDirectInput(state.DirectInput{})
	assert.Equal(t, [3]byte{}, f.Buttons)
	assert.Equal(t, procon.LeftStickCalibration.Center(), f.LeftStick)
}

func TestReportPool(t *testing.T) {
	r := procon.AllocReport()
	(*r)[5] = 0xEE
	procon.FreeReport(r)

	r2 := procon.AllocReport()
	assert.Len(t, *r2, procon.ReportSize)
	assert.Equal(t, byte(procon.InputPrefix), (*r2)[0])
	assert.Zero(t, (*r2)[5])
	procon.FreeReport(r2)
	procon.FreeReport(nil)
}
